package whatsapp

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/goodchoice-relay/internal/menu"
)

// WebhookEvent is the top-level envelope Meta posts for the WhatsApp Cloud API.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account entry in the envelope.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries the field that changed and its value.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds inbound messages (and delivery statuses, which are ignored).
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is a single inbound WhatsApp message.
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive is the reply to a list or button message.
type Interactive struct {
	Type        string `json:"type"`
	ListReply   *Reply `json:"list_reply,omitempty"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
}

// Reply is the row or button a user picked.
type Reply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MessageKind classifies the inbound message shape.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindInteractive MessageKind = "interactive"
	KindOther       MessageKind = "other"
)

// InboundMessage is the normalized message handed to the relay. It lives
// only for the duration of one dispatch.
type InboundMessage struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	Kind      MessageKind    `json:"kind"`
	Text      string         `json:"text,omitempty"`
	Selection menu.Selection `json:"selection"`
	Timestamp time.Time      `json:"timestamp"`
}

// SendRequest is the payload posted to /{phone_number_id}/messages.
type SendRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type,omitempty"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *TextPayload        `json:"text,omitempty"`
	Image            *ImagePayload       `json:"image,omitempty"`
	Interactive      *InteractivePayload `json:"interactive,omitempty"`
}

// TextPayload is an outbound text body.
type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// ImagePayload references uploaded media by id, or a public link.
type ImagePayload struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// InteractivePayload is an outbound list message.
type InteractivePayload struct {
	Type   string      `json:"type"`
	Body   TextPayload `json:"body"`
	Action ListAction  `json:"action"`
}

// ListAction is the button and sections of a list message.
type ListAction struct {
	Button   string        `json:"button"`
	Sections []ListSection `json:"sections"`
}

// ListSection groups list rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ListRow is one selectable row; its id comes back as a list reply.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListMenu is the transport-neutral description of a list message.
type ListMenu struct {
	Body         string
	Button       string
	SectionTitle string
	Rows         []ListRow
}

// SendResponse is the Graph API reply to a send call.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *APIError `json:"error,omitempty"`
}

// MessageID returns the id of the first accepted message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// MediaResponse is the Graph API reply to a media upload.
type MediaResponse struct {
	ID    string    `json:"id"`
	Error *APIError `json:"error,omitempty"`
}

// ErrGraphAPI matches every *APIError via errors.Is.
var ErrGraphAPI = errors.New("whatsapp: graph api error")

// APIError is an error object returned by the Graph API.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode,omitempty"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: API error %d (status %d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrGraphAPI
}
