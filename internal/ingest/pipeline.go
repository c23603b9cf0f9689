// internal/ingest/pipeline.go
// Package ingest turns uploaded files into namespaced vector records:
// parse, chunk, embed, upsert, with every state transition recorded so the
// status endpoint can report progress.
package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"docquery/internal/logging"
	"docquery/internal/providers"
	"docquery/internal/vectorstore"
)

// Tracker records ingestion state transitions for a file.
type Tracker interface {
	MarkProcessing(ctx context.Context, fileID string) error
	MarkComplete(ctx context.Context, fileID string, chunkCount int) error
	MarkFailed(ctx context.Context, fileID string, reason string) error
}

// Job describes one file waiting to be ingested. Path points at the staged
// copy of the upload; the pipeline removes it when done.
type Job struct {
	FileID   string
	Tenant   string
	Filename string
	Path     string
}

// Pipeline runs the parse -> chunk -> embed -> upsert sequence for uploads.
type Pipeline struct {
	parsers  *ParserRegistry
	chunker  *Chunker
	embedder providers.Embedder
	store    vectorstore.Store
	tracker  Tracker
	timeout  time.Duration
}

// NewPipeline wires an ingestion pipeline. Timeout bounds the whole run for
// one file, embedding calls included.
func NewPipeline(parsers *ParserRegistry, chunker *Chunker, embedder providers.Embedder, store vectorstore.Store, tracker Tracker, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Pipeline{
		parsers:  parsers,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		tracker:  tracker,
		timeout:  timeout,
	}
}

// Supports reports whether the pipeline can extract text from files with the
// given extension. Upload validation consults this so a configured allow-list
// cannot admit a format no parser exists for.
func (p *Pipeline) Supports(extension string) bool {
	return p.parsers.Supports(extension)
}

// Start launches ingestion of the job in the background. The upload handler
// returns immediately; progress is observable through the tracker.
func (p *Pipeline) Start(job Job) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Run(ctx, job); err != nil {
			logging.LogEvent("ingest failed file_id=%s tenant=%s: %v", job.FileID, job.Tenant, err)
		}
	}()
}

// Run ingests one file synchronously. The staged file is removed when the
// run finishes, whether it succeeded or not.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	defer os.Remove(job.Path)

	if err := p.tracker.MarkProcessing(ctx, job.FileID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	chunkCount, err := p.process(ctx, job)
	if err != nil {
		if markErr := p.tracker.MarkFailed(context.WithoutCancel(ctx), job.FileID, err.Error()); markErr != nil {
			logging.LogEvent("ingest could not record failure for %s: %v", job.FileID, markErr)
		}
		return err
	}

	if err := p.tracker.MarkComplete(ctx, job.FileID, chunkCount); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	logging.LogEvent("ingest complete file_id=%s tenant=%s chunks=%d", job.FileID, job.Tenant, chunkCount)
	return nil
}

func (p *Pipeline) process(ctx context.Context, job Job) (int, error) {
	text, err := p.parsers.Parse(job.Path)
	if err != nil {
		return 0, err
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", job.Filename)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = vectorstore.Record{
			ID:     fmt.Sprintf("%s-chunk-%d", job.FileID, ch.Index),
			Values: vectors[i],
			Metadata: vectorstore.Metadata{
				Text:       ch.Text,
				FileID:     job.FileID,
				Filename:   job.Filename,
				ChunkIndex: ch.Index,
			},
		}
	}

	// Delete-and-replace keeps re-uploads of the same file id from leaving
	// stale chunks behind.
	if err := p.store.DeleteFile(ctx, job.Tenant, job.FileID); err != nil {
		return 0, fmt.Errorf("clear previous records: %w", err)
	}
	if err := p.store.Upsert(ctx, job.Tenant, records); err != nil {
		return 0, fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return len(records), nil
}
