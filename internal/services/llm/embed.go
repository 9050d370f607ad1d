package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"alchemist/internal/services"
)

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed returns the embedding vector for text. An empty vector is reported as
// services.ErrValidation.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "llm", "embed", "text required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "embed", "api key required", nil)
	}
	payload := embeddingRequest{Model: c.cfg.EmbeddingModel, Input: text}

	var vector []float64
	err := c.withRetry(ctx, "embed", func() error {
		body, err := c.post(ctx, c.cfg.EmbeddingsURL, payload)
		if err != nil {
			return err
		}
		var parsed embeddingResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("llm embed: decode response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("llm embed: api error: %s", strings.TrimSpace(parsed.Error.Message))
		}
		for _, item := range parsed.Data {
			if len(item.Embedding) > 0 {
				vector = item.Embedding
				return nil
			}
		}
		return &emptyContentError{Op: "embed", Snippet: summarizePayloadSnippet(string(body))}
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	return vector, nil
}
