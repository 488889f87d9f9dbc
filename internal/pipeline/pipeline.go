// Package pipeline runs governed requests: authorize, retrieve, classify, route,
// execute, and audit every decision, denial and failure on the way.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/classify"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/security"
	"github.com/hyperjump/docuflow/internal/storage"
)

// DefaultTopK is used when a request does not set top_k and no other default is configured.
const DefaultTopK = 5

// Searcher runs hybrid searches. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.DocumentGroup, error)
}

// Router picks a routing decision. *workflow.Router implements it.
type Router interface {
	Route(classification, text string) models.RouteDecision
}

// Executor applies a routing decision and audits it. *workflow.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, decision models.RouteDecision, execCtx map[string]any) (models.ExecutionResult, error)
}

// AuditLog records events and reads them back. *audit.Logger implements it.
type AuditLog interface {
	audit.Sink
	Records(f audit.Filter) ([]models.AuditRecord, error)
}

// Ingester stores uploaded documents and directory trees. *ingest.Ingester implements it.
type Ingester interface {
	IngestBytes(ctx context.Context, sourceFile string, content []byte) (*ingest.Result, error)
	IngestDirectory(ctx context.Context, dir string, exts []string, recursive bool) (*ingest.DirectoryReport, error)
}

// Adder stores single fragments. *store.Store implements it.
type Adder interface {
	Add(ctx context.Context, in models.Input) (models.Fragment, error)
}

// Pipeline owns the governed request path. Its collaborators are immutable after
// construction, so one Pipeline serves concurrent requests.
type Pipeline struct {
	guard      *security.Guard
	searcher   Searcher
	classifier classify.Classifier
	router     Router
	executor   Executor
	audit      AuditLog
	ingester   Ingester
	adder      Adder
	registry   storage.Registry
	topK       int
	logger     *zap.Logger
	newID      func() string
}

// Deps are the collaborators of a Pipeline. Ingester, Adder and Registry are optional; the
// operations that need them fail when they are nil.
type Deps struct {
	Guard      *security.Guard
	Searcher   Searcher
	Classifier classify.Classifier
	Router     Router
	Executor   Executor
	Audit      AuditLog
	Ingester   Ingester
	Adder      Adder
	Registry   storage.Registry
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithDefaultTopK sets the top_k used when a request leaves it unset.
func WithDefaultTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithRequestIDs overrides request ID generation.
func WithRequestIDs(next func() string) Option {
	return func(p *Pipeline) { p.newID = next }
}

// New returns a pipeline over d.
func New(d Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		guard:      d.Guard,
		searcher:   d.Searcher,
		classifier: d.Classifier,
		router:     d.Router,
		executor:   d.Executor,
		audit:      d.Audit,
		ingester:   d.Ingester,
		adder:      d.Adder,
		registry:   d.Registry,
		topK:       DefaultTopK,
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run retrieves evidence for req, routes it and executes the decision. A
// successful run writes exactly two audit records (workflow_decision and
// workflow_execution); a denial or failure writes exactly one.
func (p *Pipeline) Run(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	reqID := p.newID()
	caps := []security.Capability{security.ViewSearchResults, security.ExecuteWorkflow}
	if req.Classification != "" {
		caps = append(caps, security.OverrideRoute)
	}
	if err := p.authorize(reqID, req.Role, req.Query, caps...); err != nil {
		return nil, err
	}
	if err := req.Validate(p.topK); err != nil {
		return nil, p.fail(reqID, req.Role, req.Query, err)
	}

	groups, err := p.searcher.Search(ctx, req.Query, req.TopK)
	if err != nil {
		return nil, p.fail(reqID, req.Role, req.Query, err)
	}
	if len(groups) == 0 {
		return nil, p.fail(reqID, req.Role, req.Query, errs.ErrEmptyResults)
	}

	best := groups[0]
	evidence := best.Chunks[0].Text
	classification := models.Classification{Label: req.Classification, Confidence: 1}
	if req.Classification == "" {
		classification = p.classifier.Classify(evidence)
	}

	decision := p.router.Route(classification.Label, evidence)
	if decision.Empty() {
		return nil, p.fail(reqID, req.Role, req.Query, errs.ErrNoRouteMatched)
	}

	if err := p.audit.Log(audit.EventWorkflowDecision, map[string]any{
		"request_id":     reqID,
		"role":           req.Role,
		"query":          req.Query,
		"classification": classification,
		"decision":       decision,
		"source_file":    best.SourceFile,
	}); err != nil {
		return nil, err
	}

	result, err := p.executor.Execute(ctx, decision, map[string]any{
		"request_id":     reqID,
		"role":           req.Role,
		"query":          req.Query,
		"classification": classification.Label,
		"source_file":    best.SourceFile,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("query routed",
		zap.String("request_id", reqID),
		zap.String("classification", classification.Label),
		zap.String("action", result.Action),
		zap.String("status", result.Status))

	return &models.QueryResult{
		RequestID:      reqID,
		Classification: classification,
		Decision:       decision,
		Result:         result,
		Groups:         groups,
	}, nil
}

// Search runs a hybrid search without routing. Success is audited as a search event.
func (p *Pipeline) Search(ctx context.Context, role, query string, topK int) (*models.SearchResult, error) {
	reqID := p.newID()
	if err := p.authorize(reqID, role, query, security.ViewSearchResults); err != nil {
		return nil, err
	}
	req := models.QueryRequest{Role: role, Query: query, TopK: topK}
	if err := req.Validate(p.topK); err != nil {
		return nil, p.fail(reqID, role, query, err)
	}
	groups, err := p.searcher.Search(ctx, req.Query, req.TopK)
	if err != nil {
		return nil, p.fail(reqID, role, query, err)
	}
	if err := p.audit.Log(audit.EventSearch, map[string]any{
		"request_id": reqID,
		"role":       role,
		"query":      req.Query,
		"top_k":      req.TopK,
		"groups":     len(groups),
	}); err != nil {
		return nil, err
	}
	return &models.SearchResult{RequestID: reqID, Query: req.Query, Groups: groups}, nil
}

// Classify labels text. It needs only view_search_results and is not audited on success.
func (p *Pipeline) Classify(_ context.Context, role, text string) (models.Classification, error) {
	if err := p.authorize(p.newID(), role, text, security.ViewSearchResults); err != nil {
		return models.Classification{}, err
	}
	return p.classifier.Classify(text), nil
}

// AuditTrail returns audit records matching f for roles holding view_audit_logs.
func (p *Pipeline) AuditTrail(_ context.Context, role string, f audit.Filter) ([]models.AuditRecord, error) {
	if err := p.authorize(p.newID(), role, "", security.ViewAuditLogs); err != nil {
		return nil, err
	}
	return p.audit.Records(f)
}

// Ingest stores an uploaded document for roles holding ingest_documents.
func (p *Pipeline) Ingest(ctx context.Context, role, sourceFile string, content []byte) (*ingest.Result, error) {
	reqID := p.newID()
	if err := p.authorize(reqID, role, sourceFile, security.IngestDocuments); err != nil {
		return nil, err
	}
	if p.ingester == nil {
		return nil, errors.New("pipeline: ingestion is not configured")
	}
	res, err := p.ingester.IngestBytes(ctx, sourceFile, content)
	if err != nil {
		return nil, p.fail(reqID, role, sourceFile, err)
	}
	if err := p.audit.Log(audit.EventIngest, map[string]any{
		"request_id":  reqID,
		"role":        role,
		"source_file": sourceFile,
		"document_id": res.Document.ID,
		"chunks":      res.Document.Chunks,
		"skipped":     res.Skipped,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// IngestDirectory ingests every supported file under dir for roles holding
// ingest_documents. Per-file failures are reported, not audited one by one.
func (p *Pipeline) IngestDirectory(ctx context.Context, role, dir string, exts []string, recursive bool) (*ingest.DirectoryReport, error) {
	reqID := p.newID()
	if err := p.authorize(reqID, role, dir, security.IngestDocuments); err != nil {
		return nil, err
	}
	if p.ingester == nil {
		return nil, errors.New("pipeline: ingestion is not configured")
	}
	report, err := p.ingester.IngestDirectory(ctx, dir, exts, recursive)
	if err != nil {
		return nil, p.fail(reqID, role, dir, err)
	}
	if err := p.audit.Log(audit.EventIngest, map[string]any{
		"request_id": reqID,
		"role":       role,
		"directory":  dir,
		"ingested":   report.Ingested,
		"skipped":    report.Skipped,
		"failed":     len(report.Failed),
	}); err != nil {
		return nil, err
	}
	return report, nil
}

// AddDocument stores one fragment for roles holding ingest_documents.
func (p *Pipeline) AddDocument(ctx context.Context, role string, in models.DocumentInput) (models.Fragment, error) {
	reqID := p.newID()
	if err := p.authorize(reqID, role, in.SourceFile, security.IngestDocuments); err != nil {
		return models.Fragment{}, err
	}
	if p.adder == nil {
		return models.Fragment{}, errors.New("pipeline: document store is not configured")
	}
	frag, err := p.adder.Add(ctx, in.ToInput())
	if err != nil {
		return models.Fragment{}, p.fail(reqID, role, in.SourceFile, err)
	}
	if err := p.audit.Log(audit.EventIngest, map[string]any{
		"request_id":  reqID,
		"role":        role,
		"source_file": frag.SourceFile,
		"vector_id":   frag.VectorID,
	}); err != nil {
		return models.Fragment{}, err
	}
	return frag, nil
}

// Documents lists ingested source documents, newest first, for roles holding view_search_results.
func (p *Pipeline) Documents(ctx context.Context, role string, offset, limit int) ([]*models.SourceDocument, error) {
	if err := p.authorize(p.newID(), role, "", security.ViewSearchResults); err != nil {
		return nil, err
	}
	if p.registry == nil {
		return []*models.SourceDocument{}, nil
	}
	return p.registry.ListDocuments(ctx, offset, limit)
}

// authorize enforces every capability in order and audits the first denial.
func (p *Pipeline) authorize(reqID, role, query string, caps ...security.Capability) error {
	for _, c := range caps {
		err := p.guard.Enforce(role, c)
		if err == nil {
			continue
		}
		p.logger.Warn("request denied",
			zap.String("request_id", reqID), zap.String("role", role), zap.String("capability", string(c)))
		if auditErr := p.audit.Log(audit.EventDenied, map[string]any{
			"request_id": reqID,
			"role":       role,
			"query":      query,
			"capability": string(c),
			"error":      err.Error(),
		}); auditErr != nil {
			return errors.Join(err, auditErr)
		}
		return err
	}
	return nil
}

// fail audits err as a failed governed request and returns it.
func (p *Pipeline) fail(reqID, role, query string, err error) error {
	p.logger.Warn("request failed",
		zap.String("request_id", reqID), zap.String("kind", errs.Kind(err)), zap.Error(err))
	if auditErr := p.audit.Log(audit.EventFailed, map[string]any{
		"request_id": reqID,
		"role":       role,
		"query":      query,
		"kind":       errs.Kind(err),
		"error":      err.Error(),
	}); auditErr != nil {
		return errors.Join(err, auditErr)
	}
	return err
}
