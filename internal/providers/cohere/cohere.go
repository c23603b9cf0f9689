// internal/providers/cohere/cohere.go
// Package cohere provides a Reranker backed by the Cohere rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docquery/internal/logging"
	"docquery/internal/providers"
)

const defaultBaseURL = "https://api.cohere.com"

// Client implements providers.Reranker over the /v2/rerank endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	timeout time.Duration
	debug   bool
}

// Config configures the rerank client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Debug   bool
}

// New constructs a rerank client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("cohere API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("cohere rerank model is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		debug:   cfg.Debug,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank reorders candidates by relevance to the query and truncates to topN.
// Returned indices refer back into the candidates slice.
func (c *Client) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]providers.RerankResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to rerank")
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: candidates,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v2/rerank"
	if c.debug {
		logging.LogRequest("OUT", "cohere", c.model, "", map[string]any{"candidates": len(candidates), "top_n": topN})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}

	results := make([]providers.RerankResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		results = append(results, providers.RerankResult{Index: r.Index, Relevance: r.RelevanceScore})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("rerank response contained no results")
	}
	return results, nil
}

var _ providers.Reranker = (*Client)(nil)
