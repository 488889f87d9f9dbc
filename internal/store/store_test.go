package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/docuflow/internal/embedding"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/vector"
)

const testDims = 64

func openTestStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	idx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	p := NewFilePersister(filepath.Join(dir, "store.index"), filepath.Join(dir, "metadata.json"))
	s, err := Open(idx, embedding.NewHashingEmbedder(testDims), p, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpen_CreatesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := openTestStore(t, dir)
	defer s.Close()
	for _, name := range []string{"store.index", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if s.Len() != 0 || s.IndexLen() != 0 {
		t.Errorf("new store should be empty: %d/%d", s.Len(), s.IndexLen())
	}
}

func TestOpen_OneArtifactMissing(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	_ = s.Close()
	if err := os.Remove(filepath.Join(dir, "metadata.json")); err != nil {
		t.Fatal(err)
	}
	idx, _ := vector.NewMemoryIndex(testDims)
	p := NewFilePersister(filepath.Join(dir, "store.index"), filepath.Join(dir, "metadata.json"))
	_, err := Open(idx, embedding.NewHashingEmbedder(testDims), p)
	if !errors.Is(err, errs.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "metadata.json")); !os.IsNotExist(statErr) {
		t.Error("Open must not recreate the missing artifact")
	}
}

func TestOpen_LedgerLongerThanIndex(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	if _, err := s.Add(context.Background(), models.PlainText("hello world")); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	empty, _ := vector.NewMemoryIndex(testDims)
	if err := empty.Save(filepath.Join(dir, "store.index")); err != nil {
		t.Fatal(err)
	}
	idx, _ := vector.NewMemoryIndex(testDims)
	p := NewFilePersister(filepath.Join(dir, "store.index"), filepath.Join(dir, "metadata.json"))
	if _, err := Open(idx, embedding.NewHashingEmbedder(testDims), p); !errors.Is(err, errs.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestOpen_DropsVectorsFromInterruptedSave(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := openTestStore(t, dir)
	if _, err := s.AddTexts(ctx, []models.Input{models.PlainText("invoice overdue"), models.PlainText("server outage")}); err != nil {
		t.Fatal(err)
	}
	ledgerBefore, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTexts(ctx, []models.Input{
		models.PlainText("quarterly report"), models.PlainText("meeting notes"), models.PlainText("travel policy"),
	}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	// Index renamed, ledger rename lost.
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), ledgerBefore, 0644); err != nil {
		t.Fatal(err)
	}

	s = openTestStore(t, dir)
	if s.Len() != 2 || s.IndexLen() != 2 {
		t.Fatalf("after recovery: fragments=%d index=%d, want 2/2", s.Len(), s.IndexLen())
	}
	f, err := s.Add(ctx, models.PlainText("new fragment"))
	if err != nil {
		t.Fatal(err)
	}
	if f.VectorID != 2 {
		t.Errorf("vector_id after recovery: got %d, want 2", f.VectorID)
	}
	_ = s.Close()

	s = openTestStore(t, dir)
	defer s.Close()
	if s.Len() != 3 || s.IndexLen() != 3 {
		t.Errorf("reopen: fragments=%d index=%d, want 3/3", s.Len(), s.IndexLen())
	}
}

func TestOpen_DimensionMismatch(t *testing.T) {
	idx, _ := vector.NewMemoryIndex(8)
	p := NewFilePersister(filepath.Join(t.TempDir(), "i"), filepath.Join(t.TempDir(), "m"))
	if _, err := Open(idx, embedding.NewHashingEmbedder(16), p); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestAdd_AssignsIDsAndPersists(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := openTestStore(t, dir, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	f0, err := s.Add(ctx, models.PlainText("urgent invoice"))
	if err != nil {
		t.Fatal(err)
	}
	f1, err := s.Add(ctx, models.Chunk("b.txt", "monthly report", 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if f0.VectorID != 0 || f1.VectorID != 1 {
		t.Errorf("vector ids: %d, %d", f0.VectorID, f1.VectorID)
	}
	if !f0.CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v", f0.CreatedAt)
	}
	if f1.SourceFile != "b.txt" || f1.ChunkID == nil || *f1.TotalChunks != 1 {
		t.Errorf("provenance lost: %+v", f1)
	}
	_ = s.Close()

	reopened := openTestStore(t, dir)
	defer reopened.Close()
	if reopened.Len() != 2 || reopened.IndexLen() != 2 {
		t.Fatalf("reopened store: %d fragments, %d vectors", reopened.Len(), reopened.IndexLen())
	}
	got, ok := reopened.Fragment(1)
	if !ok || got.Text != "monthly report" || got.SourceFile != "b.txt" {
		t.Errorf("reopened fragment: %+v", got)
	}
}

func TestAdd_KeepsExplicitCreatedAt(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	when := time.Date(2020, 5, 6, 0, 0, 0, 0, time.UTC)
	f, err := s.Add(context.Background(), models.EnrichedRecord{Text: "x", CreatedAt: when})
	if err != nil {
		t.Fatal(err)
	}
	if !f.CreatedAt.Equal(when) {
		t.Errorf("created_at = %v, want %v", f.CreatedAt, when)
	}
}

func TestAdd_NoText(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	_, err := s.Add(context.Background(), models.EnrichedRecord{SourceFile: "a.txt"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("nothing should be added")
	}
}

func TestAddBatch_LengthMismatch(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	vec := make([]float32, testDims)
	_, err := s.AddBatch(context.Background(), [][]float32{vec, vec}, []models.Input{models.PlainText("one")})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddTexts(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	added, err := s.AddTexts(context.Background(), []models.Input{
		models.Chunk("a.txt", "first chunk", 0, 2),
		models.Chunk("a.txt", "second chunk", 1, 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 2 || added[1].VectorID != 1 {
		t.Errorf("added: %+v", added)
	}
}

func TestSearch(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()

	hits, err := s.SearchByText(ctx, "anything", 3)
	if err != nil || len(hits) != 0 {
		t.Fatalf("empty store: %v %v", hits, err)
	}
	if _, err := s.SearchByText(ctx, "anything", 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("k=0: expected validation error, got %v", err)
	}

	texts := []string{"invoice payment overdue", "team lunch on friday", "server outage report"}
	for _, text := range texts {
		if _, err := s.Add(ctx, models.PlainText(text)); err != nil {
			t.Fatal(err)
		}
	}
	for _, text := range texts {
		hits, err := s.SearchByText(ctx, text, len(texts))
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != len(texts) {
			t.Fatalf("got %d hits", len(hits))
		}
		if hits[0].Text != text {
			t.Errorf("self match for %q ranked below %q", text, hits[0].Text)
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score < hits[i-1].Score {
				t.Errorf("hits not ascending by distance: %v", hits)
			}
		}
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := s.Add(ctx, models.PlainText(fmt.Sprintf("worker %d item %d", w, i))); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	if s.Len() != workers*perWorker || s.IndexLen() != s.Len() {
		t.Fatalf("ledger %d, index %d", s.Len(), s.IndexLen())
	}
	for i := 0; i < s.Len(); i++ {
		f, _ := s.Fragment(i)
		if f.VectorID != i {
			t.Errorf("fragment at %d has vector_id %d", i, f.VectorID)
		}
	}
}

type failingPersister struct {
	*FilePersister
	fail bool
}

func (p *failingPersister) Save(idx vector.Index, ledger []models.Fragment) error {
	if p.fail {
		return errors.New("disk full")
	}
	return p.FilePersister.Save(idx, ledger)
}

func TestAdd_PersistFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	idx, _ := vector.NewMemoryIndex(testDims)
	p := &failingPersister{FilePersister: NewFilePersister(filepath.Join(dir, "store.index"), filepath.Join(dir, "metadata.json"))}
	s, err := Open(idx, embedding.NewHashingEmbedder(testDims), p)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Add(ctx, models.PlainText("kept")); err != nil {
		t.Fatal(err)
	}

	p.fail = true
	if _, err := s.Add(ctx, models.PlainText("lost")); err == nil {
		t.Fatal("expected persistence error")
	}
	if s.Len() != 1 || s.IndexLen() != 1 {
		t.Fatalf("rollback failed: ledger %d, index %d", s.Len(), s.IndexLen())
	}

	p.fail = false
	f, err := s.Add(ctx, models.PlainText("next"))
	if err != nil {
		t.Fatal(err)
	}
	if f.VectorID != 1 {
		t.Errorf("vector_id after rollback = %d, want 1", f.VectorID)
	}
}

func TestAdd_LedgerIsolatedFromCallerMaps(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	attrs := map[string]string{"origin": "upload"}
	added, err := s.Add(context.Background(), models.EnrichedRecord{Text: "invoice overdue", Attributes: attrs})
	if err != nil {
		t.Fatal(err)
	}
	attrs["origin"] = "changed"
	added.Attributes["origin"] = "also changed"

	got, ok := s.Fragment(added.VectorID)
	if !ok {
		t.Fatal("fragment not found")
	}
	if got.Attributes["origin"] != "upload" {
		t.Errorf("stored attributes changed: %v", got.Attributes)
	}
	got.Attributes["origin"] = "mutated copy"
	again, _ := s.Fragment(added.VectorID)
	if again.Attributes["origin"] != "upload" {
		t.Errorf("Fragment should return a copy: %v", again.Attributes)
	}
}
