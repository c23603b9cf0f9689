// internal/rag/retriever.go
// Package rag runs the query path: embed the question, retrieve candidate
// chunks from the tenant's namespace, rerank them, and generate a grounded
// answer.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docquery/internal/logging"
	"docquery/internal/providers"
	"docquery/internal/vectorstore"
)

// NoDocumentsAnswer is returned verbatim when the tenant's namespace has no
// matching content. The generator is not invoked in that case.
const NoDocumentsAnswer = "No documents found. Please upload documents before querying."

// Options bound the two stages of retrieval. RetrievalLimit is the wide net
// cast at the vector store; RerankLimit is how many survivors reach the
// generator.
type Options struct {
	RetrievalLimit  int
	RerankLimit     int
	ContextTokenCap int
}

// Source identifies one chunk that contributed to an answer.
type Source struct {
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Relevance  float64 `json:"relevance"`
}

// Result is the outcome of one query.
type Result struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	RetrievedCount int      `json:"retrieved_count"`
	RerankedCount  int      `json:"reranked_count"`
	ElapsedMs      int      `json:"elapsed_ms"`
}

// Engine wires the providers and the vector store into the query path.
type Engine struct {
	embedder  providers.Embedder
	store     vectorstore.Store
	reranker  providers.Reranker
	generator providers.Generator
	opts      Options
}

// NewEngine validates the retrieval bounds and returns a query engine.
func NewEngine(embedder providers.Embedder, store vectorstore.Store, reranker providers.Reranker, generator providers.Generator, opts Options) (*Engine, error) {
	if opts.RetrievalLimit <= 0 {
		opts.RetrievalLimit = 50
	}
	if opts.RerankLimit <= 0 {
		opts.RerankLimit = 10
	}
	if opts.RerankLimit > opts.RetrievalLimit {
		return nil, fmt.Errorf("rerank limit %d exceeds retrieval limit %d", opts.RerankLimit, opts.RetrievalLimit)
	}
	return &Engine{
		embedder:  embedder,
		store:     store,
		reranker:  reranker,
		generator: generator,
		opts:      opts,
	}, nil
}

// Answer runs retrieve -> rerank -> generate for one tenant's query.
func (e *Engine) Answer(ctx context.Context, tenant, query string) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(tenant) == "" {
		return Result{}, fmt.Errorf("tenant is required")
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("query is empty")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	matches, err := e.store.Query(ctx, tenant, queryVec, e.opts.RetrievalLimit)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve candidates: %w", err)
	}
	if len(matches) == 0 {
		logging.LogEvent("query tenant=%s retrieved=0, skipping generation", tenant)
		return Result{
			Answer:    NoDocumentsAnswer,
			Sources:   []Source{},
			ElapsedMs: int(time.Since(start) / time.Millisecond),
		}, nil
	}

	selected, err := e.rerank(ctx, query, matches)
	if err != nil {
		return Result{}, err
	}

	contextBlock, contextTokens, sourceCoverage := FormatContext(selected, e.opts.ContextTokenCap)
	logging.LogEvent("query tenant=%s retrieved=%d reranked=%d context_tokens=%d sources=%d",
		tenant, len(matches), len(selected), contextTokens, sourceCoverage)

	answer, err := e.generator.Generate(ctx, query, contextBlock)
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]Source, 0, len(selected))
	for _, match := range selected {
		sources = append(sources, Source{
			FileID:     match.Metadata.FileID,
			Filename:   match.Metadata.Filename,
			ChunkIndex: match.Metadata.ChunkIndex,
			Relevance:  match.Score,
		})
	}

	return Result{
		Answer:         answer,
		Sources:        sources,
		RetrievedCount: len(matches),
		RerankedCount:  len(selected),
		ElapsedMs:      int(time.Since(start) / time.Millisecond),
	}, nil
}

// rerank reorders the retrieved matches by relevance and keeps the top
// RerankLimit. The returned matches carry the reranker's relevance as their
// score.
func (e *Engine) rerank(ctx context.Context, query string, matches []vectorstore.Match) ([]vectorstore.Match, error) {
	topN := e.opts.RerankLimit
	if topN > len(matches) {
		topN = len(matches)
	}

	candidates := make([]string, len(matches))
	for i, match := range matches {
		candidates[i] = match.Metadata.Text
	}

	ranked, err := e.reranker.Rerank(ctx, query, candidates, topN)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}

	// The reranker is asked for topN results but is not trusted to honor it.
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	selected := make([]vectorstore.Match, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(matches) {
			return nil, fmt.Errorf("reranker returned index %d for %d candidates", r.Index, len(matches))
		}
		match := matches[r.Index]
		match.Score = r.Relevance
		selected = append(selected, match)
	}
	return selected, nil
}
