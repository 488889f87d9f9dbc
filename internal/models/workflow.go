package models

import "time"

// RouteDecision is the action descriptor chosen by the router: {action, ...params}.
// An empty decision means no route.
type RouteDecision map[string]any

// Action returns the decision's action name, or "" when absent.
func (d RouteDecision) Action() string {
	if d == nil {
		return ""
	}
	s, _ := d["action"].(string)
	return s
}

// Empty reports whether the decision carries no route.
func (d RouteDecision) Empty() bool { return len(d) == 0 }

// Execution statuses.
const (
	StatusCompleted = "completed"
	StatusIgnored   = "ignored"
)

// ExecutionResult is the record produced by executing a decision.
type ExecutionResult struct {
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AuditRecord is one line of the audit log.
type AuditRecord struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}
