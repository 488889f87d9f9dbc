// Package storage keeps the registry of ingested source documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docuflow/internal/models"
)

// ErrNotFound is returned when a registry lookup matches nothing.
var ErrNotFound = errors.New("document not found")

// Registry records which source documents have been ingested into the vector store.
type Registry interface {
	RegisterDocument(ctx context.Context, doc *models.SourceDocument) error
	GetDocument(ctx context.Context, id string) (*models.SourceDocument, error)
	FindByContentHash(ctx context.Context, hash string) (*models.SourceDocument, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.SourceDocument, error)
	CountDocuments(ctx context.Context) (int64, error)
	Close() error
}
