//go:build !faiss || !cgo

package vector

import (
	"context"
	"errors"
)

var errNoFAISS = errors.New("FAISS not available: build with -tags=faiss and install the FAISS C library")

// FAISSIndex is unavailable without the faiss build tag.
type FAISSIndex struct{}

// NewFAISSIndex always fails without the faiss build tag.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errNoFAISS
}

func (f *FAISSIndex) Add(context.Context, [][]float32) error { return errNoFAISS }

func (f *FAISSIndex) Search(context.Context, []float32, int) ([]Neighbor, error) {
	return nil, errNoFAISS
}

func (f *FAISSIndex) Truncate(int) error { return errNoFAISS }
func (f *FAISSIndex) Save(string) error  { return errNoFAISS }
func (f *FAISSIndex) Load(string) error  { return errNoFAISS }
func (f *FAISSIndex) Len() int           { return 0 }
func (f *FAISSIndex) Dimensions() int    { return 0 }
func (f *FAISSIndex) Close() error       { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }
