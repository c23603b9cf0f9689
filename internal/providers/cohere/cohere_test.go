// internal/providers/cohere/cohere_test.go
package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerankOrdersByRelevance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/rerank" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
			TopN      int      `json:"top_n"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		// Last document wins, then the first.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": len(req.Documents) - 1, "relevance_score": 0.98},
				{"index": 0, "relevance_score": 0.42},
			},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "rerank-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := client.Rerank(context.Background(), "question", []string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 2 || results[1].Index != 0 {
		t.Fatalf("unexpected order: %+v", results)
	}
	if results[0].Relevance <= results[1].Relevance {
		t.Fatalf("expected descending relevance: %+v", results)
	}
}

func TestRerankRejectsEmptyCandidates(t *testing.T) {
	client, err := New(Config{APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Rerank(context.Background(), "q", nil, 5); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 7, "relevance_score": 0.9}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Rerank(context.Background(), "q", []string{"a"}, 1); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestRerankSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Rerank(context.Background(), "q", []string{"a"}, 1); err == nil {
		t.Fatal("expected error from 429 response")
	}
}

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
