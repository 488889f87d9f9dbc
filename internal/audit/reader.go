package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/docuflow/internal/models"
)

// Filter selects audit records. Zero values select everything.
type Filter struct {
	Event string
	// Limit keeps only the last Limit matching records.
	Limit int
}

// Read returns the records in the log at path that match f, oldest first.
// A missing log reads as empty. Lines have no length limit.
func Read(path string, f Filter) ([]models.AuditRecord, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.AuditRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	defer file.Close()

	records := []models.AuditRecord{}
	br := bufio.NewReaderSize(file, 64*1024)
	for line := 1; ; line++ {
		raw, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("audit: read line %d: %w", line, err)
		}
		if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			var rec models.AuditRecord
			if uerr := json.Unmarshal(raw, &rec); uerr != nil {
				return nil, fmt.Errorf("audit: line %d: %w", line, uerr)
			}
			if f.Event == "" || rec.Event == f.Event {
				records = append(records, rec)
				if f.Limit > 0 && len(records) > f.Limit {
					records = records[1:]
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return records, nil
		}
	}
}

// Records reads the records written to the logger's file.
func (l *Logger) Records(f Filter) ([]models.AuditRecord, error) {
	return Read(l.path, f)
}
