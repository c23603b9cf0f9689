// internal/vectorstore/redis/redis.go
// Package redis implements the vector store on Redis with the RediSearch
// module. Records live in hashes under a shared prefix; tenant isolation is
// enforced by a TAG field that every KNN query filters on.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"docquery/internal/vectorstore"
)

const (
	defaultEFConstruction = 200
	defaultM              = 16

	keyPrefix = "doc:"

	fieldText       = "text"
	fieldVector     = "vector"
	fieldTenant     = "tenant"
	fieldFileID     = "file_id"
	fieldFilename   = "filename"
	fieldChunkIndex = "chunk_index"
)

// Config holds Redis connection and index parameters.
type Config struct {
	Addr      string
	Password  string
	DB        int
	IndexName string
	Dimension int
}

// Store implements vectorstore.Store on top of RediSearch HNSW indexes.
type Store struct {
	client    *goredis.Client
	indexName string
	dimension int
}

// New connects to Redis, verifies the connection, and ensures the HNSW
// index exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("redis vector dimension must be greater than zero")
	}
	if strings.TrimSpace(cfg.IndexName) == "" {
		return nil, fmt.Errorf("redis index name is required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	s := &Store{
		client:    client,
		indexName: cfg.IndexName,
		dimension: cfg.Dimension,
	}
	if err := s.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// ensureIndex creates the HNSW index if it does not already exist.
func (s *Store) ensureIndex(ctx context.Context) error {
	if _, err := s.client.Do(ctx, "FT.INFO", s.indexName).Result(); err == nil {
		return nil
	}

	_, err := s.client.Do(ctx, "FT.CREATE", s.indexName,
		"ON", "HASH",
		"PREFIX", "1", keyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dimension),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(defaultEFConstruction),
		"M", strconv.Itoa(defaultM),
		fieldTenant, "TAG",
		fieldFileID, "TAG",
		fieldText, "TEXT",
		fieldFilename, "TEXT",
		fieldChunkIndex, "NUMERIC",
	).Result()
	if err != nil {
		return fmt.Errorf("create vector index %s: %w", s.indexName, err)
	}
	return nil
}

// Upsert writes records into the tenant's partition of the index.
func (s *Store) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	if len(records) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, rec := range records {
		if len(rec.Values) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, want %d", rec.ID, len(rec.Values), s.dimension)
		}
		key := keyPrefix + namespace + ":" + rec.ID
		pipe.HSet(ctx, key,
			fieldText, rec.Metadata.Text,
			fieldVector, encodeVector(rec.Values),
			fieldTenant, escapeTag(namespace),
			fieldFileID, escapeTag(rec.Metadata.FileID),
			fieldFilename, rec.Metadata.Filename,
			fieldChunkIndex, rec.Metadata.ChunkIndex,
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return nil
}

// Query runs a tenant-filtered KNN search and returns matches most similar
// first. RediSearch reports cosine distance, which is converted to a
// similarity score.
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

	queryStr := fmt.Sprintf("(@%s:{%s})=>[KNN %d @%s $query_vector AS knn_distance]",
		fieldTenant, escapeTag(namespace), topK, fieldVector)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.indexName, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(vector),
		"RETURN", "5", fieldText, fieldFileID, fieldFilename, fieldChunkIndex, "knn_distance",
		"SORTBY", "knn_distance",
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return parseSearchMatches(result)
}

// DeleteFile finds every record for the source file within the tenant's
// partition and deletes the underlying keys.
func (s *Store) DeleteFile(ctx context.Context, namespace, fileID string) error {
	if namespace == "" {
		return vectorstore.ErrEmptyNamespace
	}
	if fileID == "" {
		return fmt.Errorf("file id is required")
	}

	queryStr := fmt.Sprintf("@%s:{%s} @%s:{%s}",
		fieldTenant, escapeTag(namespace), fieldFileID, escapeTag(fileID))
	result, err := s.client.Do(ctx, "FT.SEARCH", s.indexName, queryStr,
		"NOCONTENT",
		"LIMIT", "0", "10000",
		"DIALECT", "2",
	).Result()
	if err != nil {
		return fmt.Errorf("find records for file %s: %w", fileID, err)
	}

	keys := searchResultKeys(result)
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %d records for file %s: %w", len(keys), fileID, err)
	}
	return nil
}

// Count reports how many records the tenant's partition holds.
func (s *Store) Count(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, vectorstore.ErrEmptyNamespace
	}
	queryStr := fmt.Sprintf("@%s:{%s}", fieldTenant, escapeTag(namespace))
	result, err := s.client.Do(ctx, "FT.SEARCH", s.indexName, queryStr,
		"NOCONTENT",
		"LIMIT", "0", "0",
		"DIALECT", "2",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("unexpected search reply format")
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, fmt.Errorf("unexpected count element in search reply")
	}
	return count, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// encodeVector packs a float32 slice as little-endian bytes, the format
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes the characters RediSearch treats as TAG separators.
func escapeTag(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';', '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+', '=', '~', ' ', '|', '/', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// parseSearchMatches walks the flat FT.SEARCH reply: count, then repeating
// (key, field-value list) pairs.
func parseSearchMatches(result interface{}) ([]vectorstore.Match, error) {
	values, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search reply format")
	}
	if len(values) < 2 {
		return []vectorstore.Match{}, nil
	}

	matches := make([]vectorstore.Match, 0, (len(values)-1)/2)
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}
		match := vectorstore.Match{ID: recordID(key)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, ok := fields[j].(string)
			if !ok {
				continue
			}
			switch name {
			case fieldText:
				match.Metadata.Text, _ = fields[j+1].(string)
			case fieldFileID:
				raw, _ := fields[j+1].(string)
				match.Metadata.FileID = unescapeTag(raw)
			case fieldFilename:
				match.Metadata.Filename, _ = fields[j+1].(string)
			case fieldChunkIndex:
				if n, ok := toInt64(fields[j+1]); ok {
					match.Metadata.ChunkIndex = int(n)
				}
			case "knn_distance":
				if d, ok := toFloat64(fields[j+1]); ok {
					match.Score = 1 - d
				}
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// searchResultKeys extracts document keys from a NOCONTENT search reply.
func searchResultKeys(result interface{}) []string {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}
	keys := make([]string, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if key, ok := values[i].(string); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// recordID strips the key prefix and tenant segment from a hash key.
func recordID(key string) string {
	trimmed := strings.TrimPrefix(key, keyPrefix)
	if idx := strings.Index(trimmed, ":"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func unescapeTag(s string) string {
	return strings.ReplaceAll(s, "\\", "")
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

var _ vectorstore.Store = (*Store)(nil)
