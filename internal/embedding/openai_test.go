package embedding

import (
	"context"
	"errors"
	"testing"

	einoEmbedding "github.com/cloudwego/eino/components/embedding"

	"github.com/hyperjump/docuflow/internal/errs"
)

type fakeEinoEmbedder struct {
	vecs [][]float64
	err  error
}

func (f *fakeEinoEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoEmbedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vecs[:len(texts)], nil
}

func TestOpenAIEmbedder_Converts(t *testing.T) {
	e := newOpenAIEmbedder(&fakeEinoEmbedder{vecs: [][]float64{{0.5, 0.25}, {1, 0}}}, 2)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0][0] != 0.5 || out[0][1] != 0.25 || out[1][0] != 1 {
		t.Errorf("got %v", out)
	}
}

func TestOpenAIEmbedder_ErrorsAreProviderErrors(t *testing.T) {
	e := newOpenAIEmbedder(&fakeEinoEmbedder{err: errors.New("503")}, 2)
	if _, err := e.Embed(context.Background(), "a"); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	wrongDims := newOpenAIEmbedder(&fakeEinoEmbedder{vecs: [][]float64{{1, 2, 3}}}, 2)
	if _, err := wrongDims.Embed(context.Background(), "a"); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected provider error for dimension mismatch, got %v", err)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{Dimensions: 8}); err == nil {
		t.Fatal("expected error without api key")
	}
}
