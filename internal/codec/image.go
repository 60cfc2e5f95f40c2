package codec

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var ErrNoImage = errors.New("image backend returned no data")

// OpenAIImageClient generates scene images through an OpenAI-compatible images API.
type OpenAIImageClient struct {
	client *openai.Client
	model  string
	size   string
}

// NewOpenAIImageClient creates a client. An empty baseURL uses the OpenAI default.
func NewOpenAIImageClient(apiKey, baseURL, model, size string) *OpenAIImageClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIImageClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		size:   size,
	}
}

// GenerateImage returns a data URI for base64 payloads, otherwise the hosted URL.
func (c *OpenAIImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		Size:           c.size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", ErrNoImage
	}
	d := resp.Data[0]
	switch {
	case d.B64JSON != "":
		return "data:image/png;base64," + d.B64JSON, nil
	case d.URL != "":
		return d.URL, nil
	default:
		return "", ErrNoImage
	}
}
