// internal/providers/anthropic/anthropic_test.go
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateReturnsText(t *testing.T) {
	var captured struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		System      string  `json:"system"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "Revenue was $1.2M [report.pdf]."}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, err := client.Generate(context.Background(), "What was revenue?", "chunk one\n---\nchunk two")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "Revenue was $1.2M [report.pdf]." {
		t.Fatalf("unexpected answer: %s", answer)
	}
	if captured.Temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", captured.Temperature)
	}
	if captured.MaxTokens != 1024 {
		t.Fatalf("expected default max tokens 1024, got %d", captured.MaxTokens)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content, "<context>") {
		t.Fatal("expected context wrapped in <context> tags")
	}
	if !strings.Contains(captured.Messages[0].Content, "chunk two") {
		t.Fatal("expected context block in prompt")
	}
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "not_found_error", "message": "model not found"},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "nope"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Generate(context.Background(), "q", "ctx")
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected API error message, got: %v", err)
	}
}

func TestGenerateRejectsEmptyQuery(t *testing.T) {
	client, err := New(Config{APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Generate(context.Background(), " ", "ctx"); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestGenerateRejectsEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Generate(context.Background(), "q", "ctx"); err == nil {
		t.Fatal("expected error for empty content")
	}
}
