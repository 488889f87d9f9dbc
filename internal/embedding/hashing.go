package embedding

import (
	"context"

	"github.com/hyperjump/docuflow/pkg/utils"
)

// HashingEmbedder is a deterministic, offline embedder using feature hashing over
// lowercase word tokens. Texts that share words get nearby vectors, and identical
// texts get identical vectors. It needs no model files, which makes it the
// fallback provider and the provider used in tests.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns an embedder that produces vectors of the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length hashed bag-of-words vector for text.
// Text with no word tokens embeds to the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(text) {
		h := HashString(w)
		sign := float32(1)
		if (h>>16)&1 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}
