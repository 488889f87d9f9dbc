package models

import (
	"strings"

	"github.com/hyperjump/docuflow/internal/errs"
)

// MaxQueryBytes bounds the length of a query after trimming.
const MaxQueryBytes = 8 << 10

// QueryRequest asks the pipeline to retrieve evidence, route it, and execute the decision.
// Classification, when set, overrides the classifier and requires the override capability.
type QueryRequest struct {
	Role           string `json:"role,omitempty"`
	Query          string `json:"query"`
	TopK           int    `json:"top_k,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// Validate trims the query and fills TopK with def when unset.
func (q *QueryRequest) Validate(def int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return errs.Validation("query cannot be empty")
	}
	if len(q.Query) > MaxQueryBytes {
		return errs.Validation("query is %d bytes, limit is %d", len(q.Query), MaxQueryBytes)
	}
	if q.TopK == 0 {
		q.TopK = def
	}
	if q.TopK < 0 {
		return errs.Validation("top_k must be positive, got %d", q.TopK)
	}
	return nil
}

// QueryResult is the outcome of a full route-and-execute cycle.
type QueryResult struct {
	RequestID      string          `json:"request_id"`
	Classification Classification  `json:"classification"`
	Decision       RouteDecision   `json:"decision"`
	Result         ExecutionResult `json:"result"`
	Groups         []DocumentGroup `json:"groups"`
}

// SearchResult is the outcome of a search-only request.
type SearchResult struct {
	RequestID string          `json:"request_id"`
	Query     string          `json:"query"`
	Groups    []DocumentGroup `json:"groups"`
}
