// internal/vectorstore/store.go
// Package vectorstore defines the namespaced vector storage interface the
// ingestion and query paths share. Every operation takes the tenant
// namespace as an explicit argument: there is no way to read or write
// vectors without naming the tenant, which is what keeps tenants isolated.
package vectorstore

import (
	"context"
	"errors"
)

// ErrEmptyNamespace is returned when a caller passes a blank tenant namespace.
var ErrEmptyNamespace = errors.New("vectorstore: namespace is required")

// Metadata is the per-record payload stored alongside each vector. The chunk
// text rides along so retrieval does not need a second lookup.
type Metadata struct {
	Text       string `json:"text"`
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// Record is the persisted unit: id, embedding, and metadata. The namespace is
// not part of the record; it is supplied per call.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is one query result with its similarity score.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Store is the namespaced vector store contract.
type Store interface {
	// Upsert writes records into the tenant's namespace.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns the topK nearest records within the tenant's namespace,
	// most similar first.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// DeleteFile removes every record for the given source file within the
	// tenant's namespace. Used for delete-and-replace re-ingestion.
	DeleteFile(ctx context.Context, namespace, fileID string) error

	// Count reports how many records the tenant's namespace holds.
	Count(ctx context.Context, namespace string) (int64, error)

	// Close releases any connections or resources.
	Close() error
}
