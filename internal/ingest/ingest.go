// Package ingest turns source documents into vector store fragments: extract,
// chunk, embed and append, then record the document in the registry.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/extract"
	"github.com/hyperjump/docuflow/internal/fileid"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/storage"
)

// Appender appends embedded fragments to the vector store. *store.Store implements it.
type Appender interface {
	AddTexts(ctx context.Context, inputs []models.Input) ([]models.Fragment, error)
}

// Result describes one ingested (or skipped) document.
type Result struct {
	Document *models.SourceDocument `json:"document"`
	// Skipped is set when identical content was ingested before.
	Skipped bool `json:"skipped"`
}

// Ingester runs the ingestion path. Ingestions are serialized so duplicate
// detection and registration see each other.
type Ingester struct {
	mu        sync.Mutex
	store     Appender
	registry  storage.Registry
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// WithRegistry records ingested documents in r and skips content already recorded.
func WithRegistry(r storage.Registry) Option {
	return func(in *Ingester) { in.registry = r }
}

// NewIngester returns an ingester appending to store.
func NewIngester(store Appender, extractor *extract.Extractor, chunker *Chunker, opts ...Option) *Ingester {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	in := &Ingester{store: store, extractor: extractor, chunker: chunker, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Supports reports whether files with ext can be ingested.
func (in *Ingester) Supports(ext string) bool {
	return in.extractor.Supports(ext)
}

// IngestBytes ingests content recorded under sourceFile. The format is taken from
// the extension of sourceFile. Text that yields nothing extractable is a validation error.
func (in *Ingester) IngestBytes(ctx context.Context, sourceFile string, content []byte) (*Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	hash := fileid.ContentID(content)
	if in.registry != nil {
		prev, err := in.registry.FindByContentHash(ctx, hash)
		if err == nil {
			in.logger.Debug("skipping duplicate content",
				zap.String("source_file", sourceFile), zap.String("document_id", prev.ID))
			return &Result{Document: prev, Skipped: true}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("lookup content hash: %w", err)
		}
	}

	text, err := in.extractor.ExtractBytes(content, filepath.Ext(sourceFile))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourceFile, err)
	}
	chunks := in.chunker.Split(text)
	inputs := make([]models.Input, len(chunks))
	for i, c := range chunks {
		inputs[i] = models.Chunk(sourceFile, c, i, len(chunks))
	}
	added, err := in.store.AddTexts(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourceFile, err)
	}

	doc := &models.SourceDocument{
		ID:          uuid.NewString(),
		SourceFile:  sourceFile,
		ContentHash: hash,
		Chunks:      len(added),
		Bytes:       int64(len(content)),
		FirstID:     added[0].VectorID,
		CreatedAt:   added[0].CreatedAt,
	}
	if in.registry != nil {
		if err := in.registry.RegisterDocument(ctx, doc); err != nil {
			in.logger.Error("fragments stored but document not registered",
				zap.String("source_file", sourceFile), zap.Int("first_vector_id", doc.FirstID), zap.Error(err))
			return nil, err
		}
	}
	in.logger.Info("document ingested",
		zap.String("source_file", sourceFile), zap.Int("chunks", doc.Chunks), zap.Int("first_vector_id", doc.FirstID))
	return &Result{Document: doc}, nil
}

// IngestFile ingests the regular file at path, recorded under its path relative to root
// (or its base name when root is empty or does not contain it).
func (in *Ingester) IngestFile(ctx context.Context, root, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return in.IngestBytes(ctx, fileid.SourceName(root, path), content)
}

// DirectoryReport summarizes a directory ingestion.
type DirectoryReport struct {
	Ingested int               `json:"ingested"`
	Skipped  int               `json:"skipped"`
	Failed   map[string]string `json:"failed,omitempty"`
	Results  []*Result         `json:"-"`
}

// IngestDirectory ingests every supported file under dir whose extension is in exts
// (all supported extensions when exts is empty). Per-file failures are collected in
// the report; the returned error is reserved for walk failures and cancellation.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string, exts []string, recursive bool) (*DirectoryReport, error) {
	report := &DirectoryReport{Failed: map[string]string{}}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !in.Supports(ext) || !extensionAllowed(ext, exts) {
			return nil
		}
		res, err := in.IngestFile(ctx, dir, path)
		if err != nil {
			report.Failed[fileid.SourceName(dir, path)] = err.Error()
			in.logger.Warn("ingest failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		report.Results = append(report.Results, res)
		if res.Skipped {
			report.Skipped++
		} else {
			report.Ingested++
		}
		return nil
	})
	return report, err
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext = strings.TrimPrefix(ext, ".")
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}
