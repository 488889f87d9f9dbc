package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docuflow/internal/models"
)

// SQLiteRegistry implements Registry on SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates the registry database at dbPath, creating
// parent directories as needed.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS source_documents (
		id TEXT PRIMARY KEY,
		source_file TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		chunks INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		first_vector_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_source_documents_hash ON source_documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_source_documents_created_at ON source_documents(created_at);
	`)
	return err
}

// RegisterDocument inserts doc. A zero CreatedAt is set to now.
func (r *SQLiteRegistry) RegisterDocument(ctx context.Context, doc *models.SourceDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO source_documents (id, source_file, content_hash, chunks, bytes, first_vector_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceFile, doc.ContentHash, doc.Chunks, doc.Bytes, doc.FirstID, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("register document %s: %w", doc.SourceFile, err)
	}
	return nil
}

const selectColumns = `SELECT id, source_file, content_hash, chunks, bytes, first_vector_id, created_at FROM source_documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.SourceDocument, error) {
	var d models.SourceDocument
	if err := s.Scan(&d.ID, &d.SourceFile, &d.ContentHash, &d.Chunks, &d.Bytes, &d.FirstID, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRegistry) queryOne(ctx context.Context, where string, arg any) (*models.SourceDocument, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, selectColumns+" WHERE "+where+" = ?", arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// GetDocument returns the document with id, or ErrNotFound.
func (r *SQLiteRegistry) GetDocument(ctx context.Context, id string) (*models.SourceDocument, error) {
	return r.queryOne(ctx, "id", id)
}

// FindByContentHash returns the document ingested with hash, or ErrNotFound.
func (r *SQLiteRegistry) FindByContentHash(ctx context.Context, hash string) (*models.SourceDocument, error) {
	return r.queryOne(ctx, "content_hash", hash)
}

// ListDocuments returns documents newest first. A non-positive limit returns all.
func (r *SQLiteRegistry) ListDocuments(ctx context.Context, offset, limit int) ([]*models.SourceDocument, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` ORDER BY created_at DESC, first_vector_id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*models.SourceDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of registered documents.
func (r *SQLiteRegistry) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_documents`).Scan(&n)
	return n, err
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
