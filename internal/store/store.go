// Package store is the persistent vector store: an index of fragment embeddings
// paired position-for-position with a ledger of fragment records.
//
// One lock serializes every mutation together with the persistence that follows
// it. A mutation that cannot be persisted is rolled back in memory, so the index,
// the ledger and the artifacts on disk always have the same length.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/embedding"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/vector"
)

// Store pairs a vector index with its fragment ledger.
type Store struct {
	index     vector.Index
	embedder  embedding.Embedder
	persister Persister
	ledger    []models.Fragment
	mu        sync.RWMutex
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for store events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open restores the store from persister. When neither artifact exists, empty
// artifacts are written immediately. When exactly one exists, Open fails with an
// integrity error and does not repair anything. Trailing index vectors left by an
// interrupted save are dropped.
func Open(idx vector.Index, embedder embedding.Embedder, persister Persister, opts ...Option) (*Store, error) {
	if embedder.Dimensions() != idx.Dimensions() {
		return nil, fmt.Errorf("embedder dimension %d does not match index dimension %d", embedder.Dimensions(), idx.Dimensions())
	}
	s := &Store{
		index:     idx,
		embedder:  embedder,
		persister: persister,
		ledger:    []models.Fragment{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	hasIndex, hasLedger, err := persister.Exists()
	if err != nil {
		return nil, fmt.Errorf("check artifacts: %w", err)
	}
	switch {
	case hasIndex && hasLedger:
		ledger, err := persister.Load(idx)
		if err != nil {
			return nil, err
		}
		if err := checkLedger(ledger); err != nil {
			return nil, err
		}
		s.ledger = ledger
		if err := s.dropOrphans(); err != nil {
			return nil, err
		}
		s.logger.Info("vector store loaded", zap.Int("fragments", len(ledger)))
	case !hasIndex && !hasLedger:
		if idx.Len() != 0 {
			return nil, fmt.Errorf("new store needs an empty index, got %d vectors", idx.Len())
		}
		if err := persister.Save(idx, s.ledger); err != nil {
			return nil, fmt.Errorf("create artifacts: %w", err)
		}
		s.logger.Info("vector store created")
	default:
		return nil, errs.Integrity("vector store artifacts incomplete: index present=%t, metadata present=%t", hasIndex, hasLedger)
	}
	return s, nil
}

func checkLedger(ledger []models.Fragment) error {
	for i, f := range ledger {
		if f.VectorID != i {
			return errs.Integrity("metadata record %d has vector_id %d", i, f.VectorID)
		}
	}
	return nil
}

// dropOrphans reconciles a loaded index with the ledger. Save renames the index
// before the ledger, so an interrupted save leaves trailing vectors with no
// metadata; those are truncated and both artifacts rewritten. An index shorter
// than the ledger is an integrity error.
func (s *Store) dropOrphans() error {
	indexLen := s.index.Len()
	switch {
	case indexLen == len(s.ledger):
		return nil
	case indexLen < len(s.ledger):
		return errs.Integrity("index holds %d vectors but metadata holds %d records", indexLen, len(s.ledger))
	}
	s.logger.Warn("dropping index vectors without metadata",
		zap.Int("index_vectors", indexLen), zap.Int("fragments", len(s.ledger)))
	if err := s.index.Truncate(len(s.ledger)); err != nil {
		return fmt.Errorf("truncate orphaned vectors: %w", err)
	}
	if err := s.persister.Save(s.index, s.ledger); err != nil {
		return fmt.Errorf("persist reconciled store: %w", err)
	}
	return nil
}

// Add embeds one input and appends it. The returned fragment carries its vector_id.
func (s *Store) Add(ctx context.Context, in models.Input) (models.Fragment, error) {
	if err := models.ValidateInput(in); err != nil {
		return models.Fragment{}, err
	}
	vec, err := s.embedder.Embed(ctx, in.Record().Text)
	if err != nil {
		return models.Fragment{}, errs.Provider("embed", err)
	}
	added, err := s.AddBatch(ctx, [][]float32{vec}, []models.Input{in})
	if err != nil {
		return models.Fragment{}, err
	}
	return added[0], nil
}

// AddTexts embeds inputs in one provider call and appends them as one unit.
func (s *Store) AddTexts(ctx context.Context, inputs []models.Input) ([]models.Fragment, error) {
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if err := models.ValidateInput(in); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		texts[i] = in.Record().Text
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errs.Provider("embed batch", err)
	}
	return s.AddBatch(ctx, vecs, inputs)
}

// AddBatch appends precomputed vectors with their inputs. Either every item is
// added and persisted, or none is.
func (s *Store) AddBatch(ctx context.Context, vectors [][]float32, inputs []models.Input) ([]models.Fragment, error) {
	if len(vectors) != len(inputs) {
		return nil, errs.Validation("vectors and metadata length mismatch: %d != %d", len(vectors), len(inputs))
	}
	dims := s.index.Dimensions()
	for i, in := range inputs {
		if err := models.ValidateInput(in); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if len(vectors[i]) != dims {
			return nil, errs.Validation("vector %d has dimension %d, expected %d", i, len(vectors[i]), dims)
		}
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.ledger)
	now := s.now().UTC()
	added := make([]models.Fragment, len(inputs))
	for i, in := range inputs {
		f := in.Record()
		f.VectorID = start + i
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		added[i] = f
	}

	if err := s.index.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("add to index: %w", err)
	}
	s.ledger = append(s.ledger, added...)

	if err := s.persister.Save(s.index, s.ledger); err != nil {
		s.ledger = s.ledger[:start]
		if terr := s.index.Truncate(start); terr != nil {
			s.logger.Error("vector store rollback failed", zap.Error(terr))
		}
		return nil, fmt.Errorf("persist vector store: %w", err)
	}
	s.logger.Debug("vector store added fragments",
		zap.Int("count", len(added)), zap.Int("first_vector_id", start))
	out := make([]models.Fragment, len(added))
	for i, f := range added {
		out[i] = f.Clone()
	}
	return out, nil
}

// Search returns up to k fragments nearest to vec, ascending distance.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, errs.Validation("k must be positive, got %d", k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ledger) == 0 {
		return []models.SearchHit{}, nil
	}
	neighbors, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]models.SearchHit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(s.ledger) {
			continue
		}
		hits = append(hits, models.SearchHit{Fragment: s.ledger[n.Position].Clone(), Score: n.Distance})
	}
	return hits, nil
}

// SearchByText embeds text and searches with the result.
func (s *Store) SearchByText(ctx context.Context, text string, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, errs.Validation("k must be positive, got %d", k)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errs.Provider("embed", err)
	}
	return s.Search(ctx, vec, k)
}

// Embed exposes the store's embedder so callers rank against the same vector space.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errs.Provider("embed", err)
	}
	return vec, nil
}

// Len returns the number of fragments in the ledger.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledger)
}

// IndexLen returns the number of vectors in the index.
func (s *Store) IndexLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// IndexType returns the vector index implementation name.
func (s *Store) IndexType() string {
	return s.index.Type()
}

// Fragment returns the record with the given vector_id.
func (s *Store) Fragment(id int) (models.Fragment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.ledger) {
		return models.Fragment{}, false
	}
	return s.ledger[id].Clone(), true
}

// Close releases the index.
func (s *Store) Close() error {
	return s.index.Close()
}
