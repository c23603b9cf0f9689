// internal/vectorstore/pinecone/pinecone.go
// Package pinecone is a minimal REST client for a Pinecone serverless index.
// Records are partitioned by Pinecone namespaces, one namespace per tenant.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docquery/internal/vectorstore"
)

// Store implements vectorstore.Store against the Pinecone data-plane API.
type Store struct {
	host      string
	apiKey    string
	dimension int
	client    *http.Client
}

// Config configures the Pinecone client. Host is the per-index data-plane
// endpoint, not the control plane.
type Config struct {
	Host      string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// New constructs a Pinecone store client.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pinecone dimension must be greater than zero")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		host:      strings.TrimRight(cfg.Host, "/"),
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

const upsertBatchSize = 100

type pineconeVector struct {
	ID       string               `json:"id"`
	Values   []float32            `json:"values"`
	Metadata vectorstore.Metadata `json:"metadata"`
}

// Upsert writes records into the tenant's namespace in batches of 100.
func (s *Store) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		vectors := make([]pineconeVector, 0, len(batch))
		for _, rec := range batch {
			if len(rec.Values) != s.dimension {
				return fmt.Errorf("vector dimension mismatch for %s: got %d, want %d", rec.ID, len(rec.Values), s.dimension)
			}
			vectors = append(vectors, pineconeVector{ID: rec.ID, Values: rec.Values, Metadata: rec.Metadata})
		}
		body := map[string]any{
			"vectors":   vectors,
			"namespace": namespace,
		}
		if err := s.postJSON(ctx, "/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("upsert batch starting at %d: %w", start, err)
		}
	}
	return nil
}

// Query returns the topK nearest vectors within the tenant's namespace.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if namespace == "" {
		return nil, vectorstore.ErrEmptyNamespace
	}
	if topK <= 0 {
		topK = 10
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"namespace":       namespace,
		"includeMetadata": true,
	}
	var resp struct {
		Matches []struct {
			ID       string               `json:"id"`
			Score    float64              `json:"score"`
			Metadata vectorstore.Metadata `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.postJSON(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vectorstore.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

// DeleteFile removes every record for the given source file within the
// tenant's namespace via a metadata filter delete.
func (s *Store) DeleteFile(ctx context.Context, namespace, fileID string) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	body := map[string]any{
		"namespace": namespace,
		"filter": map[string]any{
			"file_id": map[string]any{"$eq": fileID},
		},
	}
	return s.postJSON(ctx, "/vectors/delete", body, nil)
}

// Count reads the namespace's vector count from the index stats endpoint.
func (s *Store) Count(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, vectorstore.ErrEmptyNamespace
	}
	var resp struct {
		Namespaces map[string]struct {
			VectorCount int64 `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := s.postJSON(ctx, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return 0, err
	}
	ns, ok := resp.Namespaces[namespace]
	if !ok {
		return 0, nil
	}
	return ns.VectorCount, nil
}

// Close is a no-op; the client holds no persistent connection state.
func (s *Store) Close() error { return nil }

func (s *Store) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal pinecone request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create pinecone request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone %s failed: %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse pinecone %s response: %w", path, err)
		}
	}
	return nil
}

var _ vectorstore.Store = (*Store)(nil)
