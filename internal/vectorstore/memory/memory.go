// internal/vectorstore/memory/memory.go
// Package memory provides a brute-force in-memory vector store used by tests
// and local development.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docquery/internal/vectorstore"
)

type entry struct {
	id       string
	vector   []float32
	metadata vectorstore.Metadata
}

// Store keeps per-namespace vectors in memory and scores queries by cosine
// similarity.
type Store struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string][]entry
}

// New creates an empty store enforcing the given vector dimension.
func New(dimension int) *Store {
	return &Store{
		dimension:  dimension,
		namespaces: make(map[string][]entry),
	}
}

// Upsert writes records into the tenant's namespace, replacing records with
// matching ids.
func (s *Store) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if len(rec.Values) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(rec.Values), s.dimension)
		}
		replaced := false
		for i := range s.namespaces[namespace] {
			if s.namespaces[namespace][i].id == rec.ID {
				s.namespaces[namespace][i] = entry{id: rec.ID, vector: rec.Values, metadata: rec.Metadata}
				replaced = true
				break
			}
		}
		if !replaced {
			s.namespaces[namespace] = append(s.namespaces[namespace], entry{
				id:       rec.ID,
				vector:   rec.Values,
				metadata: rec.Metadata,
			})
		}
	}
	return nil
}

// Query returns the topK most similar records within the namespace.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if namespace == "" {
		return nil, vectorstore.ErrEmptyNamespace
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.namespaces[namespace]
	matches := make([]vectorstore.Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, vectorstore.Match{
			ID:       e.id,
			Score:    cosineSimilarity(vector, e.vector),
			Metadata: e.metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteFile removes every record for the given source file within the namespace.
func (s *Store) DeleteFile(ctx context.Context, namespace, fileID string) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.namespaces[namespace]
	kept := entries[:0]
	for _, e := range entries {
		if e.metadata.FileID != fileID {
			kept = append(kept, e)
		}
	}
	s.namespaces[namespace] = kept
	return nil
}

// Count reports how many records the namespace holds.
func (s *Store) Count(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, vectorstore.ErrEmptyNamespace
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.namespaces[namespace])), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ vectorstore.Store = (*Store)(nil)
