package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/classify"
	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/internal/embedding"
	"github.com/hyperjump/docuflow/internal/extract"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/pipeline"
	"github.com/hyperjump/docuflow/internal/search"
	"github.com/hyperjump/docuflow/internal/security"
	"github.com/hyperjump/docuflow/internal/storage"
	"github.com/hyperjump/docuflow/internal/store"
	"github.com/hyperjump/docuflow/internal/vector"
	"github.com/hyperjump/docuflow/internal/workflow"
)

// Components holds the wired application for one process.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Embedder embedding.Embedder
	Store    *store.Store
	Registry *storage.SQLiteRegistry
	Ingester *ingest.Ingester
	Audit    *audit.Logger
	Pipeline *pipeline.Pipeline
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}
	built, err := c.build(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return built, nil
}

func (c *Components) build(ctx context.Context) (*Components, error) {
	cfg, logger := c.Config, c.Logger

	rules, err := workflow.LoadRules(cfg.Workflow.RulesPath)
	if err != nil {
		return nil, err
	}
	roles, err := security.LoadRolesOrDefault(cfg.Security.RolesPath)
	if err != nil {
		return nil, err
	}
	classifier, err := classify.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}

	c.Embedder, err = embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx, err := vector.NewIndex(cfg.Vector.IndexType, c.Embedder.Dimensions())
	if err != nil {
		if cfg.Vector.IndexType == string(vector.IndexTypeMemory) || cfg.Vector.IndexType == "" {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Vector.IndexType), zap.Error(err))
		idx, err = vector.NewIndex(string(vector.IndexTypeMemory), c.Embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	c.Store, err = store.Open(idx, c.Embedder,
		store.NewFilePersister(cfg.Storage.IndexPath(), cfg.Storage.MetadataPath()),
		store.WithLogger(logger))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Info("vector store opened",
		zap.String("index_type", c.Store.IndexType()),
		zap.Int("fragments", c.Store.Len()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	c.Registry, err = storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	c.Audit, err = audit.NewLogger(cfg.Audit.Path(), audit.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	c.Ingester = ingest.NewIngester(c.Store, extract.NewExtractor(),
		ingest.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
		ingest.WithLogger(logger), ingest.WithRegistry(c.Registry))

	c.Pipeline = pipeline.New(pipeline.Deps{
		Guard:      security.NewGuard(roles),
		Searcher:   search.NewEngine(c.Store, cfg.Search.MaxChunksPerDoc, search.WithLogger(logger)),
		Classifier: classifier,
		Router:     workflow.NewRouter(rules, workflow.WithRouterLogger(logger)),
		Executor:   workflow.NewExecutor(c.Audit, workflow.WithExecutorLogger(logger)),
		Audit:      c.Audit,
		Ingester:   c.Ingester,
		Adder:      c.Store,
		Registry:   c.Registry,
	}, pipeline.WithLogger(logger), pipeline.WithDefaultTopK(cfg.Search.TopK))
	return c, nil
}

// Status reports fragment, index and registry counts plus artifact disk usage.
func (c *Components) Status(ctx context.Context) (*models.Status, error) {
	docs, err := c.Registry.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	disk, err := storage.DiskUsageBytes(
		c.Config.Storage.IndexPath(),
		c.Config.Storage.MetadataPath(),
		c.Config.Storage.DatabasePath,
		c.Config.Audit.Path(),
	)
	if err != nil {
		c.Logger.Warn("disk usage unavailable", zap.Error(err))
	}
	return &models.Status{
		Environment:       c.Config.Environment,
		Fragments:         c.Store.Len(),
		IndexLength:       c.Store.IndexLen(),
		IndexType:         c.Store.IndexType(),
		Documents:         docs,
		EmbeddingProvider: c.Config.Embedding.Provider,
		Dimensions:        c.Embedder.Dimensions(),
		DiskUsageBytes:    disk,
		WatchDirectories:  c.Config.Watch.Directories,
	}, nil
}

// Close releases every opened component. It is safe on a partially built value.
func (c *Components) Close() error {
	var errList []error
	if c.Audit != nil {
		errList = append(errList, c.Audit.Close())
	}
	if c.Registry != nil {
		errList = append(errList, c.Registry.Close())
	}
	if c.Store != nil {
		errList = append(errList, c.Store.Close())
	}
	if c.Embedder != nil {
		errList = append(errList, c.Embedder.Close())
	}
	return errors.Join(errList...)
}
