package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type bedrockInvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Titan rejects prompts longer than this.
const titanMaxPrompt = 512

// BedrockPainter renders images with an Amazon Titan image model.
type BedrockPainter struct {
	api     bedrockInvokeModelAPI
	modelID string
}

func NewBedrockPainter(api bedrockInvokeModelAPI, modelID string) *BedrockPainter {
	if api == nil {
		panic("generator: bedrock client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "amazon.titan-image-generator-v2:0"
	}
	return &BedrockPainter{api: api, modelID: modelID}
}

func (p *BedrockPainter) Name() string { return "bedrock" }

type titanRequest struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     *titanTextParams      `json:"textToImageParams,omitempty"`
	ImageVariationParams  *titanVariationParams `json:"imageVariationParams,omitempty"`
	ImageGenerationConfig titanConfig           `json:"imageGenerationConfig"`
}

type titanTextParams struct {
	Text string `json:"text"`
}

type titanVariationParams struct {
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images"`
}

type titanConfig struct {
	NumberOfImages int     `json:"numberOfImages"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	CfgScale       float64 `json:"cfgScale"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  *string  `json:"error"`
}

func (p *BedrockPainter) Paint(ctx context.Context, prompt string, input []byte, _ string) (Image, error) {
	text := prompt
	if runes := []rune(text); len(runes) > titanMaxPrompt {
		text = string(runes[:titanMaxPrompt])
	}
	req := titanRequest{
		ImageGenerationConfig: titanConfig{NumberOfImages: 1, Height: 1024, Width: 1024, CfgScale: 8},
	}
	if len(input) > 0 {
		req.TaskType = "IMAGE_VARIATION"
		req.ImageVariationParams = &titanVariationParams{
			Text:   text,
			Images: []string{base64.StdEncoding.EncodeToString(input)},
		}
	} else {
		req.TaskType = "TEXT_IMAGE"
		req.TextToImageParams = &titanTextParams{Text: text}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Image{}, fmt.Errorf("generator: marshal titan request: %w", err)
	}

	out, err := p.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Image{}, fmt.Errorf("generator: bedrock invoke: %w", err)
	}
	if out == nil || len(out.Body) == 0 {
		return Image{}, ErrEmptyImage
	}
	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return Image{}, fmt.Errorf("generator: decode titan response: %w", err)
	}
	if resp.Error != nil && *resp.Error != "" {
		return Image{}, errors.New("generator: titan: " + *resp.Error)
	}
	if len(resp.Images) == 0 {
		return Image{}, ErrEmptyImage
	}
	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return Image{}, fmt.Errorf("generator: decode titan image: %w", err)
	}
	return Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
}
