// Package embedding turns text into fixed-dimension vectors.
//
// Providers (hashing, ONNX, OpenAI-compatible) implement Embedder. Decorators add
// caching and rate limiting. Provider failures surface as errs.ProviderError and
// are never retried here.
package embedding

import "context"

// Embedder produces vector embeddings for text. Every vector has Dimensions() entries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch on top of a single-text embed function.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
