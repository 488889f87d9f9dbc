package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/config"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// New builds the configured provider and wraps it with the cache and, when
// configured, a rate limiter. An ONNX model that cannot be loaded falls back to
// the hashing provider with a warning; any other construction failure is returned.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base Embedder
	switch cfg.Provider {
	case ProviderHash, "":
		base = NewHashingEmbedder(cfg.Dimensions)
	case ProviderONNX:
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, using hashing embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			base = NewHashingEmbedder(cfg.Dimensions)
		} else {
			base = onnx
		}
	case ProviderOpenAI:
		remote, err := NewOpenAIEmbedder(ctx, OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = remote
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, onnx, openai)", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		base = NewRateLimitedEmbedder(base, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.CacheSize > 0 {
		base = NewCachedEmbedder(base, cfg.CacheSize)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", base.Dimensions()))
	return base, nil
}
