//go:build faiss && cgo

package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len=%d, want 3", idx.Len())
	}
	res, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].Position != 0 || res[1].Position != 1 {
		t.Errorf("got %v", res)
	}
}

func TestFAISSIndex_MatchesMemoryIndex(t *testing.T) {
	ctx := context.Background()
	vecs := [][]float32{{0.2, 0.4, 0.1}, {0.9, 0.1, 0.3}, {0.5, 0.5, 0.5}, {0, 0, 1}}
	query := []float32{0.4, 0.4, 0.4}

	mem, _ := NewMemoryIndex(3)
	fa, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer fa.Close()
	_ = mem.Add(ctx, vecs)
	_ = fa.Add(ctx, vecs)

	want, _ := mem.Search(ctx, query, 4)
	got, err := fa.Search(ctx, query, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i].Position != want[i].Position {
			t.Errorf("rank %d: faiss=%d memory=%d", i, got[i].Position, want[i].Position)
		}
	}
}

func TestFAISSIndex_TruncateSaveLoad(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Truncate(2); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len after truncate=%d", idx.Len())
	}

	path := filepath.Join(t.TempDir(), "store.index")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	idx2, _ := NewFAISSIndex(2)
	defer idx2.Close()
	if err := idx2.Load(path); err != nil {
		t.Fatal(err)
	}
	if idx2.Len() != 2 {
		t.Errorf("Len after load=%d", idx2.Len())
	}
}
