// internal/commands/wire.go
package commands

import (
	"context"
	"fmt"

	"docquery/internal/appconfig"
	"docquery/internal/ingest"
	"docquery/internal/providers"
	"docquery/internal/providers/anthropic"
	"docquery/internal/providers/cohere"
	"docquery/internal/providers/embed"
	"docquery/internal/rag"
	"docquery/internal/status"
	"docquery/internal/vectorstore"
	"docquery/internal/vectorstore/memory"
	"docquery/internal/vectorstore/pinecone"
	"docquery/internal/vectorstore/redis"
)

// components holds everything a command needs to serve or ingest.
type components struct {
	embedder providers.Embedder
	store    vectorstore.Store
	statuses *status.Store
	pipeline *ingest.Pipeline
	engine   *rag.Engine
}

func (c *components) Close() {
	if c.statuses != nil {
		c.statuses.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// buildComponents constructs the provider clients, the vector store backend,
// the status store, and the two pipelines from the loaded configuration.
func buildComponents(ctx context.Context, cfg *appconfig.Config) (*components, error) {
	secrets := cfg.ReadSecrets()

	embedder, err := embed.New(embed.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    secrets.EmbeddingAPIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.RequestTimeout(),
		Debug:     cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	reranker, err := cohere.New(cohere.Config{
		BaseURL: cfg.Reranker.BaseURL,
		APIKey:  secrets.CohereAPIKey,
		Model:   cfg.Reranker.Model,
		Timeout: cfg.RequestTimeout(),
		Debug:   cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	generator, err := anthropic.New(anthropic.Config{
		BaseURL:   cfg.Generator.BaseURL,
		APIKey:    secrets.AnthropicAPIKey,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
		Timeout:   cfg.RequestTimeout(),
		Debug:     cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg, secrets)
	if err != nil {
		return nil, err
	}

	statuses, err := status.Open(cfg.Ingest.StatusDBPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	chunker, err := ingest.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		statuses.Close()
		store.Close()
		return nil, err
	}
	pipeline := ingest.NewPipeline(ingest.NewParserRegistry(), chunker, embedder, store, statuses, cfg.RequestTimeout())

	engine, err := rag.NewEngine(embedder, store, reranker, generator, rag.Options{
		RetrievalLimit:  cfg.Retrieval.RetrievalLimit,
		RerankLimit:     cfg.Retrieval.RerankLimit,
		ContextTokenCap: cfg.Retrieval.ContextTokenCap,
	})
	if err != nil {
		statuses.Close()
		store.Close()
		return nil, err
	}

	return &components{
		embedder: embedder,
		store:    store,
		statuses: statuses,
		pipeline: pipeline,
		engine:   engine,
	}, nil
}

func buildStore(ctx context.Context, cfg *appconfig.Config, secrets appconfig.Secrets) (vectorstore.Store, error) {
	switch cfg.VectorStore.Backend {
	case "pinecone":
		return pinecone.New(pinecone.Config{
			Host:      cfg.VectorStore.PineconeHost,
			APIKey:    secrets.PineconeAPIKey,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.RequestTimeout(),
		})
	case "redis":
		return redis.New(ctx, redis.Config{
			Addr:      cfg.VectorStore.RedisAddr,
			Password:  cfg.VectorStore.RedisPassword,
			DB:        cfg.VectorStore.RedisDB,
			IndexName: cfg.VectorStore.IndexName,
			Dimension: cfg.Embedding.Dimension,
		})
	case "memory":
		return memory.New(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.VectorStore.Backend)
	}
}
