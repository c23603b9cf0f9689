// internal/server/server.go
// Package server exposes the ingestion and query pipeline over HTTP:
// upload, per-file status, query, and a liveness check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docquery/internal/ingest"
	"docquery/internal/logging"
	"docquery/internal/rag"
	"docquery/internal/status"
)

// Config carries the upload limits the handlers enforce.
type Config struct {
	Addr              string
	AllowedExtensions map[string]struct{}
	MaxUploadBytes    int64
	TempDir           string
}

// Server wires the HTTP handlers to the pipeline, the query engine, and the
// status store.
type Server struct {
	cfg      Config
	pipeline *ingest.Pipeline
	engine   *rag.Engine
	statuses *status.Store
}

type errResp struct {
	Error string `json:"error"`
}

// New builds the server. TempDir is created up front so uploads never race
// on directory creation.
func New(cfg Config, pipeline *ingest.Pipeline, engine *rag.Engine, statuses *status.Store) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload temp directory: %w", err)
	}
	return &Server{cfg: cfg, pipeline: pipeline, engine: engine, statuses: statuses}, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/status/{file_id}", s.handleStatus)
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	return mux
}

// ListenAndServe blocks serving HTTP until the context is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogEvent("http server listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload stages the file, records a pending status, starts background
// ingestion, and returns the file id immediately.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errResp{Error: fmt.Sprintf("upload exceeds %d byte limit", s.cfg.MaxUploadBytes)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid multipart form: " + err.Error()})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	tenant := strings.TrimSpace(r.FormValue("user_id"))
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "user_id is required"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := s.cfg.AllowedExtensions[ext]; !ok {
		writeJSON(w, http.StatusBadRequest, errResp{Error: fmt.Sprintf("file extension %q is not supported", ext)})
		return
	}
	if !s.pipeline.Supports(ext) {
		writeJSON(w, http.StatusBadRequest, errResp{Error: fmt.Sprintf("no parser available for %q files", ext)})
		return
	}

	fileID := uuid.NewString()
	stagedPath := filepath.Join(s.cfg.TempDir, fileID+ext)
	if err := stageUpload(stagedPath, file); err != nil {
		logging.LogEvent("upload staging failed tenant=%s: %v", tenant, err)
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "could not store upload"})
		return
	}

	if err := s.statuses.Create(r.Context(), fileID, tenant, header.Filename, ext); err != nil {
		os.Remove(stagedPath)
		logging.LogEvent("upload status create failed tenant=%s: %v", tenant, err)
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "could not record upload"})
		return
	}

	s.pipeline.Start(ingest.Job{
		FileID:   fileID,
		Tenant:   tenant,
		Filename: header.Filename,
		Path:     stagedPath,
	})

	logging.LogEvent("upload accepted file_id=%s tenant=%s filename=%s", fileID, tenant, header.Filename)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"file_id": fileID,
		"status":  status.StatePending,
	})
}

type statusResp struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("file_id")
	doc, err := s.statuses.Get(r.Context(), fileID)
	if errors.Is(err, status.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResp{Error: fmt.Sprintf("no document with file id %q", fileID)})
		return
	}
	if err != nil {
		logging.LogEvent("status lookup failed file_id=%s: %v", fileID, err)
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "status lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, statusResp{
		FileID:     doc.FileID,
		Filename:   doc.Filename,
		Status:     doc.State,
		Error:      doc.Error,
		ChunkCount: doc.ChunkCount,
		UploadedAt: doc.UploadedAt.UTC().Format(time.RFC3339),
	})
}

type queryReq struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryReq
	if err := decodeJSON(w, r, &req, 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "user_id is required"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "query is required"})
		return
	}

	result, err := s.engine.Answer(r.Context(), req.UserID, req.Query)
	if err != nil {
		logging.LogEvent("query failed tenant=%s: %v", req.UserID, err)
		writeJSON(w, http.StatusBadGateway, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func stageUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
