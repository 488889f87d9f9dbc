// Package vector provides flat nearest-neighbour indices over fixed-dimension vectors.
//
// An index is positional: the i-th added vector has position i. Callers keep any
// per-vector data in a parallel slice addressed by position.
package vector

import "context"

// Index stores vectors and answers k-nearest-neighbour queries by squared L2 distance.
type Index interface {
	// Add appends vectors; the first gets position Len() before the call.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbours, closest first. An empty index returns no neighbours.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Truncate drops every vector at position n or later.
	Truncate(n int) error
	// Save writes the whole index to path.
	Save(path string) error
	// Load replaces the index contents with the index stored at path.
	Load(path string) error
	Len() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit.
type Neighbor struct {
	Position int
	Distance float64
}
