package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoImage is returned when the image API answers without any image.
var ErrNoImage = errors.New("no image returned")

// ImageGenerator creates images from a text prompt.
type ImageGenerator struct {
	client *openai.Client
	size   string
}

// NewImageGenerator creates an image client. As with the chat client,
// httpClient may carry the authentication.
func NewImageGenerator(token, baseURL, size string, httpClient *http.Client) *ImageGenerator {
	cfg := openai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	if size == "" {
		size = openai.CreateImageSize512x512
	}

	return &ImageGenerator{
		client: openai.NewClientWithConfig(cfg),
		size:   size,
	}
}

// Generate returns the URL of a single generated image.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation error: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrNoImage
	}

	return resp.Data[0].URL, nil
}
