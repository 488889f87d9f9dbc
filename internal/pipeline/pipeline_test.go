package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/classify"
	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/internal/embedding"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/search"
	"github.com/hyperjump/docuflow/internal/security"
	"github.com/hyperjump/docuflow/internal/store"
	"github.com/hyperjump/docuflow/internal/vector"
	"github.com/hyperjump/docuflow/internal/workflow"
)

const testRules = `
routes:
  - when: {classification: urgent}
    route: {action: queue, queue: priority}
  - when: {classification: payment_request, keyword_contains: [overdue]}
    route: {action: tag, tag: collections}
default_route: {action: log}
`

type harness struct {
	store    *store.Store
	audit    *audit.Logger
	pipeline *Pipeline
}

func newHarness(t *testing.T, rules string) *harness {
	t.Helper()
	dir := t.TempDir()

	idx, err := vector.NewMemoryIndex(128)
	require.NoError(t, err)
	s, err := store.Open(idx, embedding.NewHashingEmbedder(128),
		store.NewFilePersister(filepath.Join(dir, "store.index"), filepath.Join(dir, "metadata.json")))
	require.NoError(t, err)

	log, err := audit.NewLogger(filepath.Join(dir, "audit", "workflow_audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() {
		log.Close()
		s.Close()
	})

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	classifier, err := classify.New(cfg.Classifier)
	require.NoError(t, err)
	rs, err := workflow.ParseRules([]byte(rules), false)
	require.NoError(t, err)

	n := 0
	p := New(Deps{
		Guard:      security.NewGuard(security.DefaultMapping()),
		Searcher:   search.NewEngine(s, 3),
		Classifier: classifier,
		Router:     workflow.NewRouter(rs),
		Executor:   workflow.NewExecutor(log),
		Audit:      log,
		Ingester:   ingest.NewIngester(s, nil, ingest.NewChunker(50, 10)),
		Adder:      s,
	}, WithRequestIDs(func() string { n++; return fmt.Sprintf("req-%d", n) }))
	return &harness{store: s, audit: log, pipeline: p}
}

func (h *harness) records(t *testing.T) []models.AuditRecord {
	t.Helper()
	recs, err := h.audit.Records(audit.Filter{})
	require.NoError(t, err)
	return recs
}

func (h *harness) add(t *testing.T, text, source string) {
	t.Helper()
	_, err := h.store.Add(context.Background(), models.EnrichedRecord{Text: text, SourceFile: source})
	require.NoError(t, err)
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, testRules)
	h.add(t, "invoice payment overdue", "a.txt")

	res, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "payment overdue", TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "a.txt", res.Groups[0].SourceFile)
	assert.Equal(t, []string{"invoice payment overdue"}, res.Groups[0].Texts())
	assert.Equal(t, models.Classification{Label: "payment_request", Confidence: 0.87}, res.Classification)
	assert.Equal(t, models.RouteDecision{"action": "tag", "tag": "collections"}, res.Decision)
	assert.Equal(t, models.ExecutionResult{Action: "tag", Status: "completed", Message: "Metadata tag applied"}, res.Result)

	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, audit.EventWorkflowDecision, recs[0].Event)
	assert.Equal(t, "req-1", recs[0].Payload["request_id"])
	assert.Equal(t, "a.txt", recs[0].Payload["source_file"])
	assert.Equal(t, audit.EventWorkflowExecution, recs[1].Event)
	assert.Equal(t, "req-1", recs[1].Payload["context"].(map[string]any)["request_id"])
}

func TestRun_DeniedIsAuditedOnce(t *testing.T) {
	h := newHarness(t, testRules)
	h.add(t, "invoice payment overdue", "a.txt")

	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleViewer, Query: "payment"})
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.EventDenied, recs[0].Event)
	assert.Equal(t, "viewer", recs[0].Payload["role"])
	assert.Equal(t, "payment", recs[0].Payload["query"])
	assert.Equal(t, "execute_workflow", recs[0].Payload["capability"])
	assert.Contains(t, recs[0].Payload["error"], "execute_workflow")
}

func TestRun_UnknownRoleDenied(t *testing.T) {
	h := newHarness(t, testRules)
	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: "intern", Query: "x"})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.Equal(t, "view_search_results", h.records(t)[0].Payload["capability"])
}

func TestRun_EmptyResults(t *testing.T) {
	h := newHarness(t, testRules)
	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "anything"})
	require.ErrorIs(t, err, errs.ErrEmptyResults)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.EventFailed, recs[0].Event)
	assert.Equal(t, "empty_results", recs[0].Payload["kind"])
	assert.Equal(t, "anything", recs[0].Payload["query"])
}

func TestRun_NoRouteMatched(t *testing.T) {
	h := newHarness(t, "routes:\n  - when: {classification: urgent}\n    route: {action: queue}\n")
	h.add(t, "quarterly newsletter", "news.txt")

	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "newsletter"})
	require.ErrorIs(t, err, errs.ErrNoRouteMatched)
	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "no_route_matched", recs[0].Payload["kind"])
}

func TestRun_ValidationFailureAudited(t *testing.T) {
	h := newHarness(t, testRules)
	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "   "})
	require.ErrorIs(t, err, errs.ErrValidation)
	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "validation", recs[0].Payload["kind"])
}

func TestRun_Override(t *testing.T) {
	h := newHarness(t, testRules)
	h.add(t, "invoice payment overdue", "a.txt")
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, models.QueryRequest{Role: security.RoleOperator, Query: "payment", Classification: "urgent"})
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.Equal(t, "override_route", h.records(t)[0].Payload["capability"])

	res, err := h.pipeline.Run(ctx, models.QueryRequest{Role: security.RoleManager, Query: "payment", Classification: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, "urgent", res.Classification.Label)
	assert.Equal(t, "queue", res.Decision.Action())
	assert.Len(t, h.records(t), 3)
}

func TestSearch(t *testing.T) {
	h := newHarness(t, testRules)
	h.add(t, "invoice payment overdue", "a.txt")
	h.add(t, "urgent server outage", "b.txt")

	res, err := h.pipeline.Search(context.Background(), security.RoleViewer, "  payment overdue ", 0)
	require.NoError(t, err)
	assert.Equal(t, "payment overdue", res.Query)
	require.NotEmpty(t, res.Groups)
	assert.Equal(t, "a.txt", res.Groups[0].SourceFile)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.EventSearch, recs[0].Event)
	assert.Equal(t, float64(DefaultTopK), recs[0].Payload["top_k"])
}

func TestSearch_EmptyIsNotAFailure(t *testing.T) {
	h := newHarness(t, testRules)
	res, err := h.pipeline.Search(context.Background(), security.RoleViewer, "nothing", 3)
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
}

func TestClassify(t *testing.T) {
	h := newHarness(t, testRules)
	c, err := h.pipeline.Classify(context.Background(), security.RoleViewer, "URGENT outage")
	require.NoError(t, err)
	assert.Equal(t, "urgent", c.Label)

	_, err = h.pipeline.Classify(context.Background(), "nobody", "text")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestAuditTrail(t *testing.T) {
	h := newHarness(t, testRules)
	ctx := context.Background()

	_, err := h.pipeline.AuditTrail(ctx, security.RoleOperator, audit.Filter{})
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	recs, err := h.pipeline.AuditTrail(ctx, security.RoleManager, audit.Filter{Event: audit.EventDenied})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "view_audit_logs", recs[0].Payload["capability"])
}

func TestIngestAndAddDocument(t *testing.T) {
	h := newHarness(t, testRules)
	ctx := context.Background()

	_, err := h.pipeline.Ingest(ctx, security.RoleOperator, "a.txt", []byte("invoice payment overdue"))
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	res, err := h.pipeline.Ingest(ctx, security.RoleManager, "a.txt", []byte("invoice payment overdue"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Document.Chunks)

	_, err = h.pipeline.Ingest(ctx, security.RoleManager, "blank.txt", []byte(" "))
	require.ErrorIs(t, err, errs.ErrValidation)

	frag, err := h.pipeline.AddDocument(ctx, security.RoleAdmin, models.DocumentInput{Text: "urgent outage", SourceFile: "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, frag.VectorID)
	assert.Equal(t, 2, h.store.Len())

	events := []string{}
	for _, r := range h.records(t) {
		events = append(events, r.Event)
	}
	assert.Equal(t, []string{audit.EventDenied, audit.EventIngest, audit.EventFailed, audit.EventIngest}, events)
}

func TestIngestDirectory(t *testing.T) {
	h := newHarness(t, testRules)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("invoice payment overdue"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("urgent outage in region one"), 0o644))

	_, err := h.pipeline.IngestDirectory(ctx, security.RoleViewer, dir, nil, true)
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	report, err := h.pipeline.IngestDirectory(ctx, security.RoleManager, dir, []string{".txt", ".md"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Ingested)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 2, h.store.Len())

	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, audit.EventDenied, recs[0].Event)
	assert.Equal(t, audit.EventIngest, recs[1].Event)
	assert.Equal(t, dir, recs[1].Payload["directory"])
	assert.EqualValues(t, 2, recs[1].Payload["ingested"])
}

type failingAudit struct{}

func (failingAudit) Log(string, map[string]any) error { return errors.New("disk full") }

func (failingAudit) Records(audit.Filter) ([]models.AuditRecord, error) { return nil, nil }

func TestRun_AuditFailureIsFatal(t *testing.T) {
	h := newHarness(t, testRules)
	h.add(t, "invoice payment overdue", "a.txt")
	p := New(Deps{
		Guard:      security.NewGuard(security.DefaultMapping()),
		Searcher:   search.NewEngine(h.store, 3),
		Classifier: h.pipeline.classifier,
		Router:     h.pipeline.router,
		Executor:   workflow.NewExecutor(failingAudit{}),
		Audit:      failingAudit{},
	})

	_, err := p.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "payment"})
	assert.EqualError(t, err, "disk full")

	_, err = p.Run(context.Background(), models.QueryRequest{Role: security.RoleViewer, Query: "payment"})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.ErrorContains(t, err, "disk full")
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, int) ([]models.DocumentGroup, error) {
	return nil, f.err
}

func TestRun_ProviderFailureAudited(t *testing.T) {
	h := newHarness(t, testRules)
	provErr := errs.Provider("embed", errors.New("connection refused"))
	h.pipeline.searcher = failingSearcher{err: provErr}

	_, err := h.pipeline.Run(context.Background(), models.QueryRequest{Role: security.RoleOperator, Query: "payment"})
	require.ErrorIs(t, err, errs.ErrProvider)
	var pe *errs.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Same(t, provErr, err)
	assert.Equal(t, "embed", pe.Op)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.EventFailed, recs[0].Event)
	assert.Equal(t, "provider", recs[0].Payload["kind"])
	assert.Equal(t, "payment", recs[0].Payload["query"])

	_, err = h.pipeline.Search(context.Background(), security.RoleViewer, "payment", 3)
	assert.Same(t, provErr, err)
	assert.Len(t, h.records(t), 2)
}
