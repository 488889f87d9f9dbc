package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/hyperjump/docuflow/internal/errs"
)

// RateLimitedEmbedder throttles calls to a remote provider. A batch counts as one
// event per text. Waiting past the context deadline is reported as a provider error.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond texts per second with the given burst.
func NewRateLimitedEmbedder(next Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Embed waits for a token then delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errs.Provider("rate limit", err)
	}
	return r.next.Embed(ctx, text)
}

// EmbedBatch waits for one token per text, in chunks no larger than the burst, then delegates.
func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	burst := r.limiter.Burst()
	for n := len(texts); n > 0; n -= burst {
		if err := r.limiter.WaitN(ctx, min(n, burst)); err != nil {
			return nil, errs.Provider("rate limit", err)
		}
	}
	return r.next.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped provider's dimension.
func (r *RateLimitedEmbedder) Dimensions() int { return r.next.Dimensions() }

// Close closes the wrapped provider.
func (r *RateLimitedEmbedder) Close() error { return r.next.Close() }
