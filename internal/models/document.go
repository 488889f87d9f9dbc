// Package models defines the records exchanged between docuflow components.
package models

import (
	"maps"
	"strings"
	"time"

	"github.com/hyperjump/docuflow/internal/errs"
)

// Fragment is one stored unit of text. VectorID is its position in the vector index.
type Fragment struct {
	VectorID    int               `json:"vector_id"`
	Text        string            `json:"text"`
	SourceFile  string            `json:"source_file,omitempty"`
	ChunkID     *int              `json:"chunk_id,omitempty"`
	TotalChunks *int              `json:"total_chunks,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Input is what callers hand to the vector store: either PlainText or an EnrichedRecord.
type Input interface {
	// Record returns the fragment this input describes. VectorID is assigned by the store.
	Record() Fragment
	isInput()
}

// PlainText is raw text with no provenance.
type PlainText string

// Record implements Input.
func (p PlainText) Record() Fragment { return Fragment{Text: string(p)} }

func (PlainText) isInput() {}

// EnrichedRecord is text with ingestion provenance.
type EnrichedRecord struct {
	Text        string            `json:"text"`
	SourceFile  string            `json:"source_file,omitempty"`
	ChunkID     *int              `json:"chunk_id,omitempty"`
	TotalChunks *int              `json:"total_chunks,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Record implements Input.
func (r EnrichedRecord) Record() Fragment {
	return Fragment{
		Text:        r.Text,
		SourceFile:  r.SourceFile,
		ChunkID:     cloneInt(r.ChunkID),
		TotalChunks: cloneInt(r.TotalChunks),
		CreatedAt:   r.CreatedAt,
		Attributes:  maps.Clone(r.Attributes),
	}
}

// Clone returns a copy of f that shares no pointers or maps with it.
func (f Fragment) Clone() Fragment {
	f.ChunkID = cloneInt(f.ChunkID)
	f.TotalChunks = cloneInt(f.TotalChunks)
	f.Attributes = maps.Clone(f.Attributes)
	return f
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (EnrichedRecord) isInput() {}

// ValidateInput returns a validation error when in is nil or carries no text.
func ValidateInput(in Input) error {
	if in == nil {
		return errs.Validation("input is required")
	}
	if strings.TrimSpace(in.Record().Text) == "" {
		return errs.Validation("input has no extractable text")
	}
	return nil
}

// Chunk builds an EnrichedRecord for chunk index of total from source.
func Chunk(source, text string, index, total int) EnrichedRecord {
	return EnrichedRecord{
		Text:        text,
		SourceFile:  source,
		ChunkID:     &index,
		TotalChunks: &total,
	}
}

// DocumentInput is the wire form of a single add request. A request with a
// source file becomes an EnrichedRecord, otherwise PlainText.
type DocumentInput struct {
	Text       string            `json:"text"`
	SourceFile string            `json:"source_file,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ToInput converts the request into a store input.
func (d *DocumentInput) ToInput() Input {
	if d.SourceFile == "" && len(d.Attributes) == 0 {
		return PlainText(d.Text)
	}
	return EnrichedRecord{Text: d.Text, SourceFile: d.SourceFile, Attributes: d.Attributes}
}

// SourceDocument is a registry entry for an ingested source file.
type SourceDocument struct {
	ID          string    `json:"id"`
	SourceFile  string    `json:"source_file"`
	ContentHash string    `json:"content_hash"`
	Chunks      int       `json:"chunks"`
	Bytes       int64     `json:"bytes"`
	FirstID     int       `json:"first_vector_id"`
	CreatedAt   time.Time `json:"created_at"`
}
