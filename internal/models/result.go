package models

// SearchHit is a fragment with its raw index distance. Lower Score is closer.
type SearchHit struct {
	Fragment
	Score float64 `json:"score"`
}

// RankedHit is a search hit with lexical and fused relevance.
type RankedHit struct {
	SearchHit
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	CombinedScore float64 `json:"combined_score"`
}

// DocumentGroup aggregates ranked hits that share a source file.
type DocumentGroup struct {
	SourceFile string      `json:"source_file"`
	BestScore  float64     `json:"score"`
	Chunks     []RankedHit `json:"chunks"`
}

// Texts returns the chunk texts in rank order.
func (g *DocumentGroup) Texts() []string {
	out := make([]string, len(g.Chunks))
	for i, c := range g.Chunks {
		out[i] = c.Text
	}
	return out
}

// Classification is a label assigned to evidence text.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Status summarizes the state of a docuflow instance.
type Status struct {
	Environment       string   `json:"environment"`
	Fragments         int      `json:"fragments"`
	IndexLength       int      `json:"index_length"`
	IndexType         string   `json:"index_type"`
	Documents         int64    `json:"documents"`
	EmbeddingProvider string   `json:"embedding_provider"`
	Dimensions        int      `json:"dimensions"`
	DiskUsageBytes    int64    `json:"disk_usage_bytes"`
	WatchDirectories  []string `json:"watch_directories,omitempty"`
}
