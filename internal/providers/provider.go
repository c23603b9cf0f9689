// internal/providers/provider.go
// Package providers defines the narrow capability interfaces for the three
// hosted AI services the pipeline depends on. Each external service sits
// behind one small interface so tests can substitute deterministic fakes.
package providers

import "context"

// Embedder maps text to a fixed-dimension vector. The same Embedder instance
// must serve both ingestion and querying: vectors from different embedding
// models are not comparable.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension the client is configured for.
	Dimension() int
}

// RerankResult points back into the candidate slice passed to Rerank.
type RerankResult struct {
	Index     int
	Relevance float64
}

// Reranker reorders retrieved candidates by relevance to the query and
// truncates to topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string, topN int) ([]RerankResult, error)
}

// Generator produces an answer from a query and an assembled context block.
type Generator interface {
	Generate(ctx context.Context, query, context string) (string, error)
}
