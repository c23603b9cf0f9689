// internal/providers/anthropic/anthropic.go
// Package anthropic provides a Generator backed by the Anthropic messages API.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// systemPrompt pins the model to the retrieved context. Answers must come
// from the supplied chunks or state that the information is unavailable.
const systemPrompt = "You are a document analysis assistant. Answer strictly from the provided " +
	"<context> block.\n\n" +
	"GUIDELINES:\n" +
	"1. If the answer is not in the context, reply exactly: 'Information not available in current documents.'\n" +
	"2. Cite sources inline with the bracketed file name, e.g. [report.pdf].\n" +
	"3. Use Markdown headers and bullet points for readability.\n" +
	"4. Preserve exact numerical values from the context; do not round.\n" +
	"5. No conversational filler. Start the answer immediately."

// Client implements providers.Generator over the /v1/messages endpoint.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	timeout   time.Duration
	debug     bool
}

// Config configures the generation client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Debug     bool
}

// New constructs a generation client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		debug:     cfg.Debug,
	}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the model with the query and the assembled context block.
// Temperature is pinned to zero: answers should be reproducible given the
// same context.
func (c *Client) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is empty")
	}

	prompt := fmt.Sprintf("Here is the retrieved document context:\n<context>\n%s\n</context>\n\nUSER QUESTION: %s",
		contextBlock, query)

	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		System:      systemPrompt,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v1/messages"
	if c.debug {
		logging.LogRequest("OUT", "anthropic", c.model, "", map[string]any{"prompt_chars": len(prompt)})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read messages response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed messagesResponse
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil {
			return "", fmt.Errorf("messages request failed: %s: %s (%s)", resp.Status, parsed.Error.Message, parsed.Error.Type)
		}
		return "", fmt.Errorf("messages request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse messages response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("messages response contained no text content")
}

var _ providers.Generator = (*Client)(nil)
