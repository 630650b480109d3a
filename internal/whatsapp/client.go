package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout  = 30 * time.Second
	defaultBackoff      = 500 * time.Millisecond

	// Graph API limits for list messages.
	maxRowTitle       = 24
	maxRowDescription = 72
	maxButtonText     = 20
	maxRows           = 10
)

// ClientConfig controls the Graph API client.
type ClientConfig struct {
	AccessToken   string
	PhoneNumberID string
	GraphAPIBase  string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
}

// Client sends messages and media via the WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
}

// NewClient creates a Graph API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp: phone number id is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.GraphAPIBase), "/")
	if base == "" {
		base = defaultGraphAPIBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		graphAPIBase:  base,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
	}, nil
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = strings.TrimRight(base, "/")
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	return c.send(ctx, SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextPayload{Body: body, PreviewURL: strings.Contains(body, "http")},
	})
}

// SendImage sends a previously uploaded image by media id.
func (c *Client) SendImage(ctx context.Context, to, mediaID, caption string) (*SendResponse, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, errors.New("whatsapp: media id is required")
	}
	return c.send(ctx, SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
		Image:            &ImagePayload{ID: mediaID, Caption: caption},
	})
}

// SendList sends an interactive list message.
func (c *Client) SendList(ctx context.Context, to string, list ListMenu) (*SendResponse, error) {
	if len(list.Rows) == 0 {
		return nil, errors.New("whatsapp: list requires at least one row")
	}
	rows := list.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	clipped := make([]ListRow, 0, len(rows))
	for _, row := range rows {
		clipped = append(clipped, ListRow{
			ID:          row.ID,
			Title:       truncateRunes(row.Title, maxRowTitle),
			Description: truncateRunes(row.Description, maxRowDescription),
		})
	}
	return c.send(ctx, SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &InteractivePayload{
			Type: "list",
			Body: TextPayload{Body: list.Body},
			Action: ListAction{
				Button: truncateRunes(list.Button, maxButtonText),
				Sections: []ListSection{{
					Title: truncateRunes(list.SectionTitle, maxRowTitle),
					Rows:  clipped,
				}},
			},
		},
	})
}

// UploadMedia uploads bytes to the media endpoint and returns the media handle.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("whatsapp: media body is empty")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if filename == "" {
		filename = "exhibit.png"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("whatsapp: write field: %w", err)
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", fmt.Errorf("whatsapp: write field: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("whatsapp: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("whatsapp: copy media: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("whatsapp: close multipart writer: %w", err)
	}

	respBody, err := c.invoke(ctx, "/"+c.phoneNumberID+"/media", buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	var media MediaResponse
	if err := json.Unmarshal(respBody, &media); err != nil {
		return "", fmt.Errorf("whatsapp: unmarshal media response: %w", err)
	}
	if media.ID == "" {
		return "", errors.New("whatsapp: media upload returned no id")
	}
	return media.ID, nil
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, errors.New("whatsapp: recipient is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal send request: %w", err)
	}
	respBody, err := c.invoke(ctx, "/"+c.phoneNumberID+"/messages", body, "application/json")
	if err != nil {
		return nil, err
	}
	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}
	return &sendResp, nil
}

// invoke posts body and retries transport failures and 5xx/429 responses
// up to maxRetries times with exponential backoff.
func (c *Client) invoke(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	url := c.graphAPIBase + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("whatsapp: create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
		httpReq.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("whatsapp: http error: %w", err)
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("whatsapp: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, respBody)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode) {
			lastErr = apiErr
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("whatsapp: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff * time.Duration(1<<attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func decodeAPIError(status int, body []byte) *APIError {
	var wrapper struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		wrapper.Error.Status = status
		return wrapper.Error
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
