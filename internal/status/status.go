// internal/status/status.go
// Package status persists per-file ingestion state in SQLite so that status
// queries survive restarts and never depend on the vector store.
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Ingestion states. A file moves pending -> processing -> complete or failed.
const (
	StatePending    = "pending"
	StateProcessing = "processing"
	StateComplete   = "complete"
	StateFailed     = "failed"
)

// ErrNotFound is returned when no document exists for a file id.
var ErrNotFound = errors.New("status: document not found")

// Document is one uploaded file's ingestion record.
type Document struct {
	FileID     string
	Tenant     string
	Filename   string
	Extension  string
	State      string
	Error      string
	ChunkCount int
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// Store tracks ingestion state in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the status database at dbPath with WAL
// journaling, and marks any documents left in processing by a previous run
// as failed.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("status database path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating status database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening status database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.failStale(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			file_id     TEXT PRIMARY KEY,
			tenant      TEXT NOT NULL,
			filename    TEXT NOT NULL,
			extension   TEXT NOT NULL,
			state       TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			chunk_count INTEGER NOT NULL DEFAULT 0,
			uploaded_at DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// failStale marks documents stuck in processing as failed. A row can only be
// in processing at startup if a previous process died mid-ingestion.
func (s *Store) failStale() error {
	_, err := s.db.Exec(
		`UPDATE documents SET state = ?, error = ?, updated_at = ? WHERE state = ? OR state = ?`,
		StateFailed, "ingestion interrupted by restart", time.Now().UTC(), StateProcessing, StatePending,
	)
	if err != nil {
		return fmt.Errorf("failing stale documents: %w", err)
	}
	return nil
}

// Create inserts a new document in the pending state.
func (s *Store) Create(ctx context.Context, fileID, tenant, filename, extension string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (file_id, tenant, filename, extension, state, uploaded_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileID, tenant, filename, extension, StatePending, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating document %s: %w", fileID, err)
	}
	return nil
}

// MarkProcessing transitions a document into the processing state.
func (s *Store) MarkProcessing(ctx context.Context, fileID string) error {
	return s.setState(ctx, fileID, StateProcessing, "", 0)
}

// MarkComplete records successful ingestion with the number of chunks stored.
func (s *Store) MarkComplete(ctx context.Context, fileID string, chunkCount int) error {
	return s.setState(ctx, fileID, StateComplete, "", chunkCount)
}

// MarkFailed records a failed ingestion with the failure reason.
func (s *Store) MarkFailed(ctx context.Context, fileID string, reason string) error {
	return s.setState(ctx, fileID, StateFailed, reason, 0)
}

func (s *Store) setState(ctx context.Context, fileID, state, reason string, chunkCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET state = ?, error = ?, chunk_count = ?, updated_at = ? WHERE file_id = ?`,
		state, reason, chunkCount, time.Now().UTC(), fileID,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", fileID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document %s: %w", fileID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the document for the given file id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, fileID string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id, tenant, filename, extension, state, error, chunk_count, uploaded_at, updated_at
		 FROM documents WHERE file_id = ?`,
		fileID,
	).Scan(&doc.FileID, &doc.Tenant, &doc.Filename, &doc.Extension, &doc.State,
		&doc.Error, &doc.ChunkCount, &doc.UploadedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("loading document %s: %w", fileID, err)
	}
	return doc, nil
}

// ListByTenant returns the tenant's documents, most recently uploaded first.
func (s *Store) ListByTenant(ctx context.Context, tenant string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, tenant, filename, extension, state, error, chunk_count, uploaded_at, updated_at
		 FROM documents WHERE tenant = ? ORDER BY uploaded_at DESC`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents for %s: %w", tenant, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.FileID, &doc.Tenant, &doc.Filename, &doc.Extension, &doc.State,
			&doc.Error, &doc.ChunkCount, &doc.UploadedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
