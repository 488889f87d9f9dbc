// Package audit keeps the append-only log of governed events as newline-delimited JSON.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/models"
)

// Event kinds written by docuflow.
const (
	EventDenied            = "denied"
	EventFailed            = "failed"
	EventWorkflowDecision  = "workflow_decision"
	EventWorkflowExecution = "workflow_execution"
	EventSearch            = "search"
	EventIngest            = "ingest"
)

// Sink receives audit events. A returned error means the event was not recorded.
type Sink interface {
	Log(event string, payload map[string]any) error
}

// Logger appends audit records to one file. Appends are serialized so concurrent
// writers never interleave partial lines, and every record is synced before Log returns.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithLogger sets a logger for write failures.
func WithLogger(z *zap.Logger) Option {
	return func(l *Logger) { l.logger = z }
}

// NewLogger opens path for appending, creating it and its directory if needed.
func NewLogger(path string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	l := &Logger{file: f, path: path, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string { return l.path }

// Log implements Sink.
func (l *Logger) Log(event string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	rec := models.AuditRecord{Event: event, Timestamp: l.now().UTC(), Payload: clampMap(payload)}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: encode %s record: %w", event, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("audit: log is closed")
	}
	if _, err := l.file.Write(line); err != nil {
		l.logger.Error("audit write failed", zap.String("event", event), zap.Error(err))
		return fmt.Errorf("audit: write %s record: %w", event, err)
	}
	if err := l.file.Sync(); err != nil {
		l.logger.Error("audit sync failed", zap.String("event", event), zap.Error(err))
		return fmt.Errorf("audit: sync %s record: %w", event, err)
	}
	return nil
}

// Close closes the underlying file. Later calls to Log fail.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
