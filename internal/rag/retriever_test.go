// internal/rag/retriever_test.go
package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"docquery/internal/providers"
	"docquery/internal/vectorstore"
	"docquery/internal/vectorstore/memory"
)

type stubEmbedder struct {
	vector []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

// reverseReranker returns candidates in reverse order with decaying scores,
// so tests can tell reranked order apart from retrieval order.
type reverseReranker struct{}

func (reverseReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]providers.RerankResult, error) {
	if topN > len(candidates) {
		topN = len(candidates)
	}
	results := make([]providers.RerankResult, 0, topN)
	for i := 0; i < topN; i++ {
		idx := len(candidates) - 1 - i
		results = append(results, providers.RerankResult{Index: idx, Relevance: 1 - float64(i)*0.1})
	}
	return results, nil
}

// overReturningReranker ignores topN and returns every candidate, imitating a
// misbehaving rerank service.
type overReturningReranker struct{}

func (overReturningReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]providers.RerankResult, error) {
	results := make([]providers.RerankResult, len(candidates))
	for i := range candidates {
		results[i] = providers.RerankResult{Index: i, Relevance: 1 - float64(i)*0.01}
	}
	return results, nil
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]providers.RerankResult, error) {
	return nil, fmt.Errorf("rerank service down")
}

type recordingGenerator struct {
	calls       int
	lastContext string
}

func (g *recordingGenerator) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	g.calls++
	g.lastContext = contextBlock
	return "generated answer", nil
}

func seedStore(t *testing.T, store vectorstore.Store, tenant string, n int) {
	t.Helper()
	records := make([]vectorstore.Record, n)
	for i := range records {
		records[i] = vectorstore.Record{
			ID:     fmt.Sprintf("f1-chunk-%d", i),
			Values: []float32{float32(i + 1), 1},
			Metadata: vectorstore.Metadata{
				Text:       fmt.Sprintf("chunk %d text", i),
				FileID:     "f1",
				Filename:   "doc.txt",
				ChunkIndex: i,
			},
		}
	}
	if err := store.Upsert(context.Background(), tenant, records); err != nil {
		t.Fatal(err)
	}
}

func TestAnswerRunsFullPath(t *testing.T) {
	store := memory.New(2)
	seedStore(t, store, "tenant-a", 5)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, gen, Options{RetrievalLimit: 50, RerankLimit: 3})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Answer(context.Background(), "tenant-a", "what happened?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != "generated answer" {
		t.Fatalf("unexpected answer: %s", result.Answer)
	}
	if result.RetrievedCount != 5 || result.RerankedCount != 3 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(result.Sources))
	}
	if result.Sources[0].Relevance < result.Sources[1].Relevance {
		t.Fatal("sources should be ordered by relevance")
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times", gen.calls)
	}
	if !strings.Contains(gen.lastContext, "[doc.txt]") {
		t.Fatalf("context block missing source labels: %q", gen.lastContext)
	}
}

func TestAnswerEmptyNamespaceSkipsGenerator(t *testing.T) {
	store := memory.New(2)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, gen, Options{})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Answer(context.Background(), "tenant-empty", "anything?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != NoDocumentsAnswer {
		t.Fatalf("unexpected answer: %s", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(result.Sources))
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run for an empty namespace")
	}
}

func TestAnswerTenantIsolation(t *testing.T) {
	store := memory.New(2)
	seedStore(t, store, "tenant-a", 3)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, gen, Options{})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Answer(context.Background(), "tenant-b", "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Answer != NoDocumentsAnswer {
		t.Fatal("tenant-b must not see tenant-a's documents")
	}
}

func TestAnswerDeterministicOrdering(t *testing.T) {
	store := memory.New(2)
	seedStore(t, store, "t", 6)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, gen, Options{RerankLimit: 4, RetrievalLimit: 50})
	if err != nil {
		t.Fatal(err)
	}

	first, err := engine.Answer(context.Background(), "t", "q")
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.Answer(context.Background(), "t", "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Sources) != len(second.Sources) {
		t.Fatal("source counts differ between identical queries")
	}
	for i := range first.Sources {
		if first.Sources[i] != second.Sources[i] {
			t.Fatalf("source %d differs: %+v vs %+v", i, first.Sources[i], second.Sources[i])
		}
	}
}

func TestAnswerCapsSourcesWhenRerankerOverReturns(t *testing.T) {
	store := memory.New(2)
	seedStore(t, store, "t", 8)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, overReturningReranker{}, gen, Options{RetrievalLimit: 50, RerankLimit: 3})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Answer(context.Background(), "t", "q")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.RerankedCount != 3 {
		t.Fatalf("expected reranked count 3, got %d", result.RerankedCount)
	}
	if len(result.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(result.Sources))
	}
}

func TestAnswerSurfacesRerankError(t *testing.T) {
	store := memory.New(2)
	seedStore(t, store, "t", 2)
	gen := &recordingGenerator{}

	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, failingReranker{}, gen, Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.Answer(context.Background(), "t", "q")
	if err == nil || !strings.Contains(err.Error(), "rerank service down") {
		t.Fatalf("expected rerank error, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run after rerank failure")
	}
}

func TestAnswerRejectsBlankInputs(t *testing.T) {
	store := memory.New(2)
	engine, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, &recordingGenerator{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Answer(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error for blank tenant")
	}
	if _, err := engine.Answer(context.Background(), "t", "  "); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestNewEngineRejectsInvertedLimits(t *testing.T) {
	store := memory.New(2)
	_, err := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, reverseReranker{}, &recordingGenerator{}, Options{RetrievalLimit: 5, RerankLimit: 10})
	if err == nil {
		t.Fatal("expected error when rerank limit exceeds retrieval limit")
	}
}
