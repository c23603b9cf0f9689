// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout matches the platform request timeout the service is deployed behind.
	defaultRequestTimeout = 300 * time.Second
	// defaultChunkOverlap applies when the config file omits chunking.chunkOverlap.
	defaultChunkOverlap = 200
)

// Config represents the top-level application configuration. It is built once
// at startup and handed to each component; nothing reads process-wide state
// after that.
type Config struct {
	Host           string `json:"host" mapstructure:"host"`
	Port           int    `json:"port" mapstructure:"port"`
	Debug          bool   `json:"debug" mapstructure:"debug"`
	LogFile        string `json:"logFile,omitempty" mapstructure:"logFile"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout"`

	Embedding   EmbeddingConfig   `json:"embedding" mapstructure:"embedding"`
	Chunking    ChunkingConfig    `json:"chunking" mapstructure:"chunking"`
	Retrieval   RetrievalConfig   `json:"retrieval" mapstructure:"retrieval"`
	VectorStore VectorStoreConfig `json:"vectorStore" mapstructure:"vectorStore"`
	Generator   GeneratorConfig   `json:"generator" mapstructure:"generator"`
	Reranker    RerankerConfig    `json:"reranker" mapstructure:"reranker"`
	Ingest      IngestConfig      `json:"ingest" mapstructure:"ingest"`

	ConfigPath string `json:"-" mapstructure:"-"`
}

// EmbeddingConfig selects the hosted embedding model. The same client serves
// the ingest and query paths so both sides share one embedding space.
type EmbeddingConfig struct {
	BaseURL   string `json:"baseURL" mapstructure:"baseURL"`
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty" mapstructure:"apiKeyEnv"`
	BatchSize int    `json:"batchSize,omitempty" mapstructure:"batchSize"`
}

// ChunkingConfig controls how extracted text is split before embedding.
// ChunkOverlap is a pointer so an explicit zero overlap is distinguishable
// from an absent key, which takes the default.
type ChunkingConfig struct {
	ChunkSize    int  `json:"chunkSize" mapstructure:"chunkSize"`
	ChunkOverlap *int `json:"chunkOverlap,omitempty" mapstructure:"chunkOverlap"`
}

// Overlap returns the effective chunk overlap in characters.
func (c ChunkingConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return defaultChunkOverlap
	}
	return *c.ChunkOverlap
}

// RetrievalConfig bounds the retrieve-then-rerank query flow.
type RetrievalConfig struct {
	RetrievalLimit  int `json:"retrievalLimit" mapstructure:"retrievalLimit"`
	RerankLimit     int `json:"rerankLimit" mapstructure:"rerankLimit"`
	ContextTokenCap int `json:"contextTokenCap,omitempty" mapstructure:"contextTokenCap"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Backend   string `json:"backend" mapstructure:"backend"`
	IndexName string `json:"indexName" mapstructure:"indexName"`
	Metric    string `json:"metric" mapstructure:"metric"`

	// Pinecone backend: the index host, e.g. https://idx-abc123.svc.us-east-1-aws.pinecone.io
	PineconeHost string `json:"pineconeHost,omitempty" mapstructure:"pineconeHost"`

	// Redis backend.
	RedisAddr     string `json:"redisAddr,omitempty" mapstructure:"redisAddr"`
	RedisPassword string `json:"redisPassword,omitempty" mapstructure:"redisPassword"`
	RedisDB       int    `json:"redisDB,omitempty" mapstructure:"redisDB"`
}

// GeneratorConfig configures the hosted LLM used for answer generation.
type GeneratorConfig struct {
	BaseURL   string `json:"baseURL,omitempty" mapstructure:"baseURL"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"maxTokens,omitempty" mapstructure:"maxTokens"`
}

// RerankerConfig configures the hosted reranking model.
type RerankerConfig struct {
	BaseURL string `json:"baseURL,omitempty" mapstructure:"baseURL"`
	Model   string `json:"model" mapstructure:"model"`
}

// IngestConfig bounds what uploads are accepted and where working state lives.
type IngestConfig struct {
	AllowedExtensions string `json:"allowedExtensions" mapstructure:"allowedExtensions"`
	MaxUploadMB       int    `json:"maxUploadMB" mapstructure:"maxUploadMB"`
	TempDir           string `json:"tempDir" mapstructure:"tempDir"`
	StatusDBPath      string `json:"statusDBPath" mapstructure:"statusDBPath"`
}

// Secrets carries the API keys for the external services. Keys are sourced
// from the environment only and never appear in the config file.
type Secrets struct {
	AnthropicAPIKey string
	CohereAPIKey    string
	PineconeAPIKey  string
	EmbeddingAPIKey string
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c Config) ListenAddr() string {
	port := c.Port
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "docquery.log"
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	mb := c.Ingest.MaxUploadMB
	if mb <= 0 {
		mb = 50
	}
	return int64(mb) << 20
}

// AllowedExtensionSet returns the normalized set of accepted file extensions,
// each with a leading dot.
func (c Config) AllowedExtensionSet() map[string]bool {
	set := make(map[string]bool)
	for _, ext := range strings.Split(c.Ingest.AllowedExtensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// ReadSecrets pulls the service API keys from the environment. The embedding
// key env var name is configurable because the embedding endpoint may be a
// self-hosted server that needs no key at all.
func (c Config) ReadSecrets() Secrets {
	keyEnv := c.Embedding.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "EMBEDDING_API_KEY"
	}
	return Secrets{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		CohereAPIKey:    os.Getenv("COHERE_API_KEY"),
		PineconeAPIKey:  os.Getenv("PINECONE_API_KEY"),
		EmbeddingAPIKey: os.Getenv(keyEnv),
	}
}

// ApplyDefaults fills unset fields with the service defaults.
func ApplyDefaults(c *Config) {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:8081/v1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 1500
	}
	if c.Chunking.ChunkOverlap == nil {
		overlap := defaultChunkOverlap
		c.Chunking.ChunkOverlap = &overlap
	}
	if c.Retrieval.RetrievalLimit <= 0 {
		c.Retrieval.RetrievalLimit = 50
	}
	if c.Retrieval.RerankLimit <= 0 {
		c.Retrieval.RerankLimit = 10
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "pinecone"
	}
	if c.VectorStore.IndexName == "" {
		c.VectorStore.IndexName = "docquery-index"
	}
	if c.VectorStore.Metric == "" {
		c.VectorStore.Metric = "cosine"
	}
	if c.VectorStore.RedisAddr == "" {
		c.VectorStore.RedisAddr = "localhost:6379"
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "claude-haiku-4-5"
	}
	if c.Generator.MaxTokens <= 0 {
		c.Generator.MaxTokens = 1024
	}
	if c.Reranker.Model == "" {
		c.Reranker.Model = "rerank-english-v3.0"
	}
	if c.Ingest.AllowedExtensions == "" {
		c.Ingest.AllowedExtensions = ".pdf,.txt,.html"
	}
	if c.Ingest.MaxUploadMB <= 0 {
		c.Ingest.MaxUploadMB = 50
	}
	if c.Ingest.TempDir == "" {
		c.Ingest.TempDir = "data/temp"
	}
	if c.Ingest.StatusDBPath == "" {
		c.Ingest.StatusDBPath = "data/docquery.db"
	}
}

// Validate rejects configurations the pipeline cannot run with. A chunk
// overlap equal to or larger than the chunk size would make the window start
// step non-positive, so it is a hard error rather than something to clamp.
func (c Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return errors.New("invalid configuration: chunking.chunkSize must be greater than zero")
	}
	if c.Chunking.Overlap() < 0 {
		return errors.New("invalid configuration: chunking.chunkOverlap must be zero or greater")
	}
	if c.Chunking.Overlap() >= c.Chunking.ChunkSize {
		return fmt.Errorf("invalid configuration: chunking.chunkOverlap (%d) must be smaller than chunking.chunkSize (%d)",
			c.Chunking.Overlap(), c.Chunking.ChunkSize)
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("invalid configuration: embedding.dimension must be greater than zero")
	}
	if c.Retrieval.RerankLimit > c.Retrieval.RetrievalLimit {
		return fmt.Errorf("invalid configuration: retrieval.rerankLimit (%d) cannot exceed retrieval.retrievalLimit (%d)",
			c.Retrieval.RerankLimit, c.Retrieval.RetrievalLimit)
	}
	switch c.VectorStore.Backend {
	case "pinecone", "redis", "memory":
	default:
		return fmt.Errorf("invalid configuration: unknown vectorStore.backend %q (expected pinecone, redis, or memory)", c.VectorStore.Backend)
	}
	if len(c.AllowedExtensionSet()) == 0 {
		return errors.New("invalid configuration: ingest.allowedExtensions must list at least one extension")
	}
	return nil
}

// Load reads the application configuration from the specified path. A missing
// file is not an error: the service can run entirely on defaults plus
// environment keys.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
		}
	} else {
		if err := ValidateSchema(data); err != nil {
			return Config{}, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("could not parse config file %q: %w", path, err)
		}
		config.ConfigPath = path
	}

	ApplyDefaults(&config)
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
