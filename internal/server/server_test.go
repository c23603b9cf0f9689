// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/internal/ingest"
	"docquery/internal/providers"
	"docquery/internal/rag"
	"docquery/internal/status"
	"docquery/internal/vectorstore/memory"
)

type stubEmbedder struct{ dim int }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	vec[0] = 1
	return vec, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = s.Embed(ctx, texts[i])
	}
	return out, nil
}

func (s stubEmbedder) Dimension() int { return s.dim }

type passthroughReranker struct{}

func (passthroughReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]providers.RerankResult, error) {
	if topN > len(candidates) {
		topN = len(candidates)
	}
	results := make([]providers.RerankResult, topN)
	for i := range results {
		results[i] = providers.RerankResult{Index: i, Relevance: 1 - float64(i)*0.05}
	}
	return results, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	return "answer to: " + query, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *status.Store) {
	t.Helper()
	dir := t.TempDir()

	statuses, err := status.Open(filepath.Join(dir, "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { statuses.Close() })

	store := memory.New(4)
	chunker, err := ingest.NewChunker(100, 20)
	require.NoError(t, err)
	pipeline := ingest.NewPipeline(ingest.NewParserRegistry(), chunker, stubEmbedder{dim: 4}, store, statuses, time.Minute)

	engine, err := rag.NewEngine(stubEmbedder{dim: 4}, store, passthroughReranker{}, echoGenerator{}, rag.Options{})
	require.NoError(t, err)

	srv, err := New(Config{
		AllowedExtensions: map[string]struct{}{".txt": {}, ".pdf": {}, ".html": {}},
		MaxUploadBytes:    1 << 20,
		TempDir:           filepath.Join(dir, "temp"),
	}, pipeline, engine, statuses)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, statuses
}

func uploadFile(t *testing.T, ts *httptest.Server, userID, filename, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("user_id", userID))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(ts.URL+"/api/v1/upload", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func waitForState(t *testing.T, ts *httptest.Server, fileID, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/api/v1/status/" + fileID)
		require.NoError(t, err)
		var body struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		decodeBody(t, resp, &body)
		if body.Status == want {
			return
		}
		if body.Status == status.StateFailed && want != status.StateFailed {
			t.Fatalf("ingestion failed: %s", body.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("file %s never reached state %s (last: %s)", fileID, want, body.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadThenStatusThenQuery(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "tenant-a", "notes.txt", strings.Repeat("the quarterly revenue grew. ", 20))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var upload struct {
		FileID string `json:"file_id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &upload)
	require.NotEmpty(t, upload.FileID)
	assert.Equal(t, status.StatePending, upload.Status)

	waitForState(t, ts, upload.FileID, status.StateComplete)

	queryBody, _ := json.Marshal(map[string]string{"query": "what grew?", "user_id": "tenant-a"})
	queryResp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader(queryBody))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, queryResp.StatusCode)

	var result rag.Result
	decodeBody(t, queryResp, &result)
	assert.Equal(t, "answer to: what grew?", result.Answer)
	assert.NotEmpty(t, result.Sources)
	for _, src := range result.Sources {
		assert.Equal(t, upload.FileID, src.FileID)
		assert.Equal(t, "notes.txt", src.Filename)
	}
}

func TestQueryWithoutDocuments(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"query": "anything?", "user_id": "tenant-new"})
	resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result rag.Result
	decodeBody(t, resp, &result)
	assert.Equal(t, rag.NoDocumentsAnswer, result.Answer)
	assert.Empty(t, result.Sources)
}

func TestQueryTenantIsolation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "tenant-a", "private.txt", "tenant-a confidential data")
	var upload struct {
		FileID string `json:"file_id"`
	}
	decodeBody(t, resp, &upload)
	waitForState(t, ts, upload.FileID, status.StateComplete)

	body, _ := json.Marshal(map[string]string{"query": "confidential?", "user_id": "tenant-b"})
	queryResp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var result rag.Result
	decodeBody(t, queryResp, &result)
	assert.Equal(t, rag.NoDocumentsAnswer, result.Answer)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := uploadFile(t, ts, "t", "malware.exe", "binary")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsExtensionWithoutParser(t *testing.T) {
	dir := t.TempDir()

	statuses, err := status.Open(filepath.Join(dir, "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { statuses.Close() })

	store := memory.New(4)
	chunker, err := ingest.NewChunker(100, 20)
	require.NoError(t, err)
	pipeline := ingest.NewPipeline(ingest.NewParserRegistry(), chunker, stubEmbedder{dim: 4}, store, statuses, time.Minute)

	engine, err := rag.NewEngine(stubEmbedder{dim: 4}, store, passthroughReranker{}, echoGenerator{}, rag.Options{})
	require.NoError(t, err)

	// Allow-list admits .docx but no parser handles it; the upload must be
	// rejected up front instead of failing during ingestion.
	srv, err := New(Config{
		AllowedExtensions: map[string]struct{}{".txt": {}, ".docx": {}},
		MaxUploadBytes:    1 << 20,
		TempDir:           filepath.Join(dir, "temp"),
	}, pipeline, engine, statuses)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := uploadFile(t, ts, "t", "report.docx", "content")
	var body errResp
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Error, "no parser")
}

func TestUploadRequiresUserID(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := uploadFile(t, ts, "", "doc.txt", "content")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := uploadFile(t, ts, "t", "big.txt", strings.Repeat("x", 2<<20))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestStatusUnknownFileReturns404(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/v1/status/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueryValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	cases := []string{
		`{"query":"", "user_id":"t"}`,
		`{"query":"q", "user_id":""}`,
		`{"query":"q", "user_id":"t", "extra":"field"}`,
		`not json`,
	}
	for _, payload := range cases {
		resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload: %s", payload)
	}
}

func TestFailedIngestionReportsError(t *testing.T) {
	ts, _ := newTestServer(t)

	// A .pdf extension with non-PDF bytes fails in the parser.
	resp := uploadFile(t, ts, "t", "broken.pdf", "this is not a pdf")
	var upload struct {
		FileID string `json:"file_id"`
	}
	decodeBody(t, resp, &upload)
	waitForState(t, ts, upload.FileID, status.StateFailed)

	statusResp, err := http.Get(ts.URL + "/api/v1/status/" + upload.FileID)
	require.NoError(t, err)
	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	decodeBody(t, statusResp, &body)
	assert.Equal(t, status.StateFailed, body.Status)
	assert.NotEmpty(t, body.Error)
}

func TestConcurrentUploadsProceedIndependently(t *testing.T) {
	ts, _ := newTestServer(t)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		resp := uploadFile(t, ts, fmt.Sprintf("tenant-%d", i%2), fmt.Sprintf("doc-%d.txt", i), strings.Repeat("text ", 50))
		var upload struct {
			FileID string `json:"file_id"`
		}
		decodeBody(t, resp, &upload)
		ids = append(ids, upload.FileID)
	}
	for _, id := range ids {
		waitForState(t, ts, id, status.StateComplete)
	}
}
