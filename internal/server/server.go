// Package server provides the HTTP API for docuflow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
)

// RoleHeader carries the caller's role. Requests without it act as the default role.
const RoleHeader = "X-Role"

const (
	// maxUploadBytes bounds multipart uploads and document bodies.
	maxUploadBytes = 32 << 20
	// maxRequestBytes bounds search, query and classify bodies.
	maxRequestBytes = 1 << 20
)

// Service is the governed surface served over HTTP. *pipeline.Pipeline implements it.
type Service interface {
	Run(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error)
	Search(ctx context.Context, role, query string, topK int) (*models.SearchResult, error)
	Classify(ctx context.Context, role, text string) (models.Classification, error)
	AuditTrail(ctx context.Context, role string, f audit.Filter) ([]models.AuditRecord, error)
	Ingest(ctx context.Context, role, sourceFile string, content []byte) (*ingest.Result, error)
	AddDocument(ctx context.Context, role string, in models.DocumentInput) (models.Fragment, error)
	Documents(ctx context.Context, role string, offset, limit int) ([]*models.SourceDocument, error)
}

// StatusFunc reports instance status for GET /api/v1/status.
type StatusFunc func(ctx context.Context) (*models.Status, error)

// Server is the HTTP server for the docuflow API.
type Server struct {
	svc         Service
	status      StatusFunc
	config      *config.ServerConfig
	defaultRole string
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. status may be nil.
func NewServer(
	svc Service,
	status StatusFunc,
	cfg *config.ServerConfig,
	defaultRole string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:         svc,
		status:      status,
		config:      cfg,
		defaultRole: defaultRole,
		logger:      logger,
	}
}

// Handler returns the routed API handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Post("/query", s.handleQuery)
		r.Post("/classify", s.handleClassify)
		r.Post("/documents", s.handleAddDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/upload", s.handleUpload)
		r.Get("/audit", s.handleAudit)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) role(r *http.Request) string {
	if role := r.Header.Get(RoleHeader); role != "" {
		return role
	}
	return s.defaultRole
}
