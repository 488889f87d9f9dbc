package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/docuflow/internal/errs"
)

func TestRateLimitedEmbedder_PassesThrough(t *testing.T) {
	r := NewRateLimitedEmbedder(NewHashingEmbedder(8), 1000, 10)
	ctx := context.Background()
	if _, err := r.Embed(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	out, err := r.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Errorf("len=%d", len(out))
	}
}

func TestRateLimitedEmbedder_DeadlineIsProviderError(t *testing.T) {
	r := NewRateLimitedEmbedder(NewHashingEmbedder(8), 0.001, 1)
	ctx := context.Background()
	if _, err := r.Embed(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := r.Embed(ctx, "second")
	if !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
