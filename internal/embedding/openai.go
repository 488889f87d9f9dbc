package embedding

import (
	"context"
	"fmt"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"

	"github.com/hyperjump/docuflow/internal/errs"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API through eino.
type OpenAIEmbedder struct {
	client     einoEmbedding.Embedder
	dimensions int
}

// NewOpenAIEmbedder creates a remote embedder. The API key is required.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("openai embedder: dimensions must be positive")
	}
	client, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return newOpenAIEmbedder(client, cfg.Dimensions), nil
}

func newOpenAIEmbedder(client einoEmbedding.Embedder, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, dimensions: dimensions}
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := e.client.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, errs.Provider("embed", err)
	}
	if len(raw) != len(texts) {
		return nil, errs.Provider("embed", fmt.Errorf("got %d embeddings for %d texts", len(raw), len(texts)))
	}
	out := make([][]float32, len(raw))
	for i, vec := range raw {
		if len(vec) != e.dimensions {
			return nil, errs.Provider("embed", fmt.Errorf("dimension mismatch: got %d, expected %d", len(vec), e.dimensions))
		}
		f := make([]float32, len(vec))
		for j, v := range vec {
			f[j] = float32(v)
		}
		out[i] = f
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error { return nil }
