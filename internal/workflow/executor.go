package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/models"
)

// Recognized actions.
const (
	ActionQueue   = "queue"
	ActionTag     = "tag"
	ActionLog     = "log"
	ActionWebhook = "webhook"
)

var actionMessages = map[string]string{
	ActionQueue:   "Item queued for processing",
	ActionTag:     "Metadata tag applied",
	ActionLog:     "Logged only (no side effects)",
	ActionWebhook: "Webhook execution placeholder",
}

// Executor applies routing decisions. Every call is audited as workflow_execution.
type Executor struct {
	sink   audit.Sink
	logger *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets a logger for executed actions.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor returns an executor that audits to sink.
func NewExecutor(sink audit.Sink, opts ...ExecutorOption) *Executor {
	e := &Executor{sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies decision. A decision without an action is treated as "log";
// an unrecognized action is ignored rather than failed. The returned error is
// non-nil only when the execution could not be audited.
func (e *Executor) Execute(ctx context.Context, decision models.RouteDecision, execCtx map[string]any) (models.ExecutionResult, error) {
	action := decision.Action()
	if action == "" {
		action = ActionLog
	}
	result := models.ExecutionResult{Action: action, Status: models.StatusCompleted}
	if msg, ok := actionMessages[action]; ok {
		result.Message = msg
	} else {
		result.Status = models.StatusIgnored
		result.Message = "Unknown action: " + action
	}

	if decision == nil {
		decision = models.RouteDecision{}
	}
	if execCtx == nil {
		execCtx = map[string]any{}
	}
	err := e.sink.Log(audit.EventWorkflowExecution, map[string]any{
		"decision": decision,
		"context":  execCtx,
		"result":   result,
	})
	if err != nil {
		return result, fmt.Errorf("workflow: audit execution: %w", err)
	}
	e.logger.Info("workflow executed",
		zap.String("action", result.Action), zap.String("status", result.Status))
	return result, nil
}
