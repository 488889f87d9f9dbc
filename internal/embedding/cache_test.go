package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d", c.Len())
	}
}

type countingEmbedder struct {
	*HashingEmbedder
	calls int
	texts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	return c.HashingEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.HashingEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if inner.texts != 1 {
		t.Errorf("second Embed should hit cache, provider saw %d texts", inner.texts)
	}

	out, err := c.EmbedBatch(ctx, []string{"hello", "world", "again"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0] == nil || out[1] == nil || out[2] == nil {
		t.Fatalf("batch output: %v", out)
	}
	if inner.texts != 3 {
		t.Errorf("batch should embed only misses, provider saw %d texts", inner.texts)
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions=%d", c.Dimensions())
	}
}
