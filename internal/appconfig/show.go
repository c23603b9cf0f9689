// internal/appconfig/show.go
package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary. Secrets are reported
// as present or missing, never echoed.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}
	if cfg == nil {
		return
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Listen:            %s\n", cfg.ListenAddr())
	fmt.Fprintf(out, "  Debug:             %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Request Timeout:   %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Embedding Model:   %s (dim %d)\n", cfg.Embedding.Model, cfg.Embedding.Dimension)
	fmt.Fprintf(out, "  Embedding URL:     %s\n", cfg.Embedding.BaseURL)
	fmt.Fprintf(out, "  Chunk Size:        %d chars\n", cfg.Chunking.ChunkSize)
	fmt.Fprintf(out, "  Chunk Overlap:     %d chars\n", cfg.Chunking.Overlap())
	fmt.Fprintf(out, "  Retrieval Limit:   %d\n", cfg.Retrieval.RetrievalLimit)
	fmt.Fprintf(out, "  Rerank Limit:      %d\n", cfg.Retrieval.RerankLimit)
	fmt.Fprintf(out, "  Vector Backend:    %s (index %s, metric %s)\n", cfg.VectorStore.Backend, cfg.VectorStore.IndexName, cfg.VectorStore.Metric)
	fmt.Fprintf(out, "  Generator Model:   %s\n", cfg.Generator.Model)
	fmt.Fprintf(out, "  Reranker Model:    %s\n", cfg.Reranker.Model)
	fmt.Fprintf(out, "  Allowed Uploads:   %s (max %d MB)\n", cfg.Ingest.AllowedExtensions, cfg.Ingest.MaxUploadMB)
	fmt.Fprintf(out, "  Status DB:         %s\n", cfg.Ingest.StatusDBPath)

	secrets := cfg.ReadSecrets()
	fmt.Fprintln(out, "API keys:")
	fmt.Fprintf(out, "  ANTHROPIC_API_KEY: %s\n", presence(secrets.AnthropicAPIKey))
	fmt.Fprintf(out, "  COHERE_API_KEY:    %s\n", presence(secrets.CohereAPIKey))
	fmt.Fprintf(out, "  PINECONE_API_KEY:  %s\n", presence(secrets.PineconeAPIKey))
}

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}
