package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	loads  []map[string]any
	err    error
}

func (s *recordingSink) Log(event string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	s.loads = append(s.loads, payload)
	return nil
}

const sampleRules = `
routes:
  - name: urgent
    when:
      classification: urgent
    route:
      action: queue
      queue: priority
  - name: overdue payments
    when:
      classification: payment_request
      keyword_contains: [Overdue, "late fee"]
    route:
      action: tag
      tag: collections
  - name: any invoice
    when:
      keyword_contains: [invoice]
    route:
      action: webhook
default_route:
  action: log
`

func mustParse(t *testing.T, src string) *RuleSet {
	t.Helper()
	rs, err := ParseRules([]byte(src), false)
	require.NoError(t, err)
	return rs
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r := NewRouter(mustParse(t, sampleRules))

	tests := []struct {
		name, classification, text, wantAction string
	}{
		{"classification only", "urgent", "anything", "queue"},
		{"classification and keyword", "payment_request", "Invoice payment OVERDUE", "tag"},
		{"keyword alone not enough for rule 2", "general", "payment overdue", "log"},
		{"later rule", "payment_request", "new invoice", "webhook"},
		{"default", "other", "anything", "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAction, r.Route(tt.classification, tt.text).Action())
		})
	}
	assert.Equal(t, models.RouteDecision{"action": "queue", "queue": "priority"}, r.Route("urgent", ""))
}

func TestRouter_SimpleRuleAndDefault(t *testing.T) {
	r := NewRouter(mustParse(t, `
routes:
  - when: {classification: urgent}
    route: {action: queue}
default_route: {action: log}
`))
	assert.Equal(t, models.RouteDecision{"action": "queue"}, r.Route("urgent", "anything"))
	assert.Equal(t, models.RouteDecision{"action": "log"}, r.Route("other", "anything"))
}

func TestRouter_NoDefaultMeansNoRoute(t *testing.T) {
	r := NewRouter(mustParse(t, `
routes:
  - when: {classification: urgent}
    route: {action: queue}
`))
	assert.True(t, r.Route("general", "text").Empty())
	assert.True(t, NewRouter(nil).Route("x", "y").Empty())
}

func TestRouter_EmptyKeywordListNeverMatches(t *testing.T) {
	r := NewRouter(mustParse(t, `
routes:
  - when: {keyword_contains: []}
    route: {action: queue}
default_route: {action: log}
`))
	assert.Equal(t, "log", r.Route("x", "anything").Action())
}

func TestRouter_DecisionIsCopy(t *testing.T) {
	r := NewRouter(mustParse(t, sampleRules))
	d := r.Route("urgent", "")
	d["action"] = "mutated"
	assert.Equal(t, "queue", r.Route("urgent", "").Action())
}

func TestLoadRules_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[routes]]
name = "urgent"
[routes.when]
classification = "urgent"
[routes.route]
action = "queue"

[default_route]
action = "log"
`), 0o644))
	rs, err := LoadRules(path)
	require.NoError(t, err)
	r := NewRouter(rs)
	assert.Equal(t, "queue", r.Route("urgent", "").Action())
	assert.Equal(t, "log", r.Route("general", "").Action())
}

func TestLoadRules_Malformed(t *testing.T) {
	bad := map[string]string{
		"syntax":        "routes: [unclosed",
		"routes type":   "routes: {a: b}",
		"empty route":   "routes:\n  - when: {classification: x}\n",
		"action type":   "routes:\n  - route: {action: [a]}\n",
		"blank keyword": "routes:\n  - when: {keyword_contains: [\" \"]}\n    route: {action: log}\n",
		"default type":  "default_route: {action: 3}\n",
	}
	for name, src := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(src), false)
			assert.ErrorIs(t, err, errs.ErrConfig)
		})
	}
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestExecutor_Actions(t *testing.T) {
	tests := []struct {
		decision    models.RouteDecision
		wantAction  string
		wantStatus  string
		wantMessage string
	}{
		{models.RouteDecision{"action": "queue"}, "queue", "completed", "Item queued for processing"},
		{models.RouteDecision{"action": "tag", "tag": "x"}, "tag", "completed", "Metadata tag applied"},
		{models.RouteDecision{"action": "log"}, "log", "completed", "Logged only (no side effects)"},
		{models.RouteDecision{"action": "webhook"}, "webhook", "completed", "Webhook execution placeholder"},
		{models.RouteDecision{}, "log", "completed", "Logged only (no side effects)"},
		{models.RouteDecision{"action": "bogus"}, "bogus", "ignored", "Unknown action: bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.wantAction+"_"+tt.wantStatus, func(t *testing.T) {
			sink := &recordingSink{}
			res, err := NewExecutor(sink).Execute(context.Background(), tt.decision, map[string]any{"request_id": "r1"})
			require.NoError(t, err)
			assert.Equal(t, models.ExecutionResult{Action: tt.wantAction, Status: tt.wantStatus, Message: tt.wantMessage}, res)
			require.Equal(t, []string{audit.EventWorkflowExecution}, sink.events)
			assert.Equal(t, res, sink.loads[0]["result"])
			assert.Equal(t, map[string]any{"request_id": "r1"}, sink.loads[0]["context"])
		})
	}
}

func TestExecutor_BogusStillAudited(t *testing.T) {
	sink := &recordingSink{}
	res, err := NewExecutor(sink).Execute(context.Background(), models.RouteDecision{"action": "bogus"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIgnored, res.Status)
	assert.Len(t, sink.events, 1)
	assert.Equal(t, map[string]any{}, sink.loads[0]["context"])
}

func TestExecutor_AuditFailure(t *testing.T) {
	cause := errors.New("disk full")
	_, err := NewExecutor(&recordingSink{err: cause}).Execute(context.Background(), models.RouteDecision{"action": "queue"}, nil)
	assert.ErrorIs(t, err, cause)
}

func TestExecutor_WritesAuditFile(t *testing.T) {
	l, err := audit.NewLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	defer l.Close()

	_, err = NewExecutor(l).Execute(context.Background(), models.RouteDecision{"action": "queue"}, map[string]any{"role": "operator"})
	require.NoError(t, err)

	recs, err := audit.Read(l.Path(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.EventWorkflowExecution, recs[0].Event)
	assert.Equal(t, map[string]any{"action": "queue"}, recs[0].Payload["decision"])
	assert.Equal(t, map[string]any{"action": "queue", "status": "completed", "message": "Item queued for processing"}, recs[0].Payload["result"])
}
