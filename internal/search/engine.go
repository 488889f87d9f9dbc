package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/models"
)

// DefaultMaxChunksPerDoc caps the chunks returned per document when no cap is given.
const DefaultMaxChunksPerDoc = 3

// Retriever finds the k fragments nearest to a text. *store.Store implements it.
type Retriever interface {
	SearchByText(ctx context.Context, text string, k int) ([]models.SearchHit, error)
}

// HybridSearch retrieves topK fragments for query, reranks them and groups them
// by document. It returns an empty result without ranking when nothing is retrieved.
func HybridSearch(ctx context.Context, r Retriever, query string, topK, maxChunksPerDoc int) ([]models.DocumentGroup, error) {
	if maxChunksPerDoc <= 0 {
		maxChunksPerDoc = DefaultMaxChunksPerDoc
	}
	hits, err := r.SearchByText(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []models.DocumentGroup{}, nil
	}
	return GroupAndCap(Rerank(query, hits), maxChunksPerDoc), nil
}

// Engine runs hybrid searches against one retriever with a configured per-document cap.
type Engine struct {
	retriever       Retriever
	maxChunksPerDoc int
	logger          *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for search events.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over r.
func NewEngine(r Retriever, maxChunksPerDoc int, opts ...EngineOption) *Engine {
	e := &Engine{retriever: r, maxChunksPerDoc: maxChunksPerDoc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs HybridSearch with the engine's per-document cap.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]models.DocumentGroup, error) {
	groups, err := HybridSearch(ctx, e.retriever, query, topK, e.maxChunksPerDoc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("hybrid search",
		zap.String("query", query), zap.Int("top_k", topK), zap.Int("groups", len(groups)))
	return groups, nil
}
