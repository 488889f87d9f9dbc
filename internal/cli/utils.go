// Package cli provides output helpers for the docuflow command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const separator = "─────────────────────────────────────────────────────────"

// ParseFormat validates a --output flag value. An empty value means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", errs.Validation("unknown output format %q (want text or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResult writes grouped search results to w in the given format.
func WriteSearchResult(w io.Writer, res *models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d documents for %q\n\n", len(res.Groups), res.Query)
	writeGroups(w, res.Groups)
	return nil
}

// WriteQueryResult writes a routed query outcome to w in the given format.
func WriteQueryResult(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "Request:        %s\n", res.RequestID)
	fmt.Fprintf(w, "Classification: %s (%.2f)\n", res.Classification.Label, res.Classification.Confidence)
	fmt.Fprintf(w, "Decision:       %s\n", formatDecision(res.Decision))
	fmt.Fprintf(w, "Result:         %s [%s] %s\n\n", res.Result.Action, res.Result.Status, res.Result.Message)
	fmt.Fprintln(w, "Evidence:")
	writeGroups(w, res.Groups)
	return nil
}

func writeGroups(w io.Writer, groups []models.DocumentGroup) {
	for i, g := range groups {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%d. %s | Score: %.4f\n", i+1, g.SourceFile, g.BestScore)
		for _, c := range g.Chunks {
			fmt.Fprintf(w, "   [%d] %.4f (Keyword: %.4f, Semantic: %.4f)\n",
				c.VectorID, c.CombinedScore, c.KeywordScore, c.SemanticScore)
			fmt.Fprintf(w, "       %s\n", utils.TruncateWords(c.Text, 30))
		}
	}
	if len(groups) > 0 {
		fmt.Fprintln(w, separator)
	}
}

func formatDecision(d models.RouteDecision) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return strings.Join(parts, " ")
}

// WriteAuditRecords writes audit records to w, one per row in text format.
func WriteAuditRecords(w io.Writer, recs []models.AuditRecord, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tEVENT\tROLE\tDETAIL")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.Event, valueOr(r.Payload["role"], "-"), auditDetail(r))
	}
	return tw.Flush()
}

func auditDetail(r models.AuditRecord) string {
	for _, key := range []string{"error", "message", "query", "source_file"} {
		if v, ok := r.Payload[key]; ok && v != "" {
			return utils.Truncate(fmt.Sprint(v), 60)
		}
	}
	return ""
}

func valueOr(v any, def string) any {
	if v == nil || v == "" {
		return def
	}
	return v
}

// WriteIngestReport writes a directory ingestion summary to w.
func WriteIngestReport(w io.Writer, report *ingest.DirectoryReport, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	fmt.Fprintf(w, "Ingested: %d\nSkipped:  %d\nFailed:   %d\n", report.Ingested, report.Skipped, len(report.Failed))
	paths := make([]string, 0, len(report.Failed))
	for p := range report.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s: %s\n", p, report.Failed[p])
	}
	return nil
}

// WriteStatus writes instance status to w.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, st)
	}
	fmt.Fprintf(w, "Environment:  %s\n", st.Environment)
	fmt.Fprintf(w, "Fragments:    %d\n", st.Fragments)
	fmt.Fprintf(w, "Index:        %s (%d vectors, %d dims)\n", st.IndexType, st.IndexLength, st.Dimensions)
	fmt.Fprintf(w, "Embedding:    %s\n", st.EmbeddingProvider)
	fmt.Fprintf(w, "Documents:    %d\n", st.Documents)
	fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(st.DiskUsageBytes))
	if len(st.WatchDirectories) > 0 {
		fmt.Fprintf(w, "Watching:     %s\n", strings.Join(st.WatchDirectories, ", "))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
