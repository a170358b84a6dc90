// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MODELRAG_* overrides, DATABASE_URL)
//  2. Config file (./model-rag.yaml or ~/.model-rag/config.yaml)
//  3. Default values
//
// Configuration categories:
//   - AI: provider, model, embedder (see validation.go for accepted values)
//   - Storage: vector store driver (chromem directory or PostgreSQL/pgvector)
//   - RAG: retrieval depth, generation retry bound, CSV cleaning columns
//   - Ingestion: ordered list of CSV sources; registration order defines the
//     order collections are queried in
//   - Server: listen address, CORS origins, rate limiting
//   - Otel: optional OTLP trace export
//
// Sensitive values (PostgreSQL password) are never logged. All values are
// validated immediately after loading; invalid configuration fails fast with
// sentinel errors checkable via errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidStorageDriver indicates an unknown vector store driver.
	ErrInvalidStorageDriver = errors.New("invalid storage driver")

	// ErrInvalidPersistDir indicates the chromem persist directory is empty.
	ErrInvalidPersistDir = errors.New("invalid persist directory")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidTopK indicates the per-collection retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMaxRetries indicates the generation retry bound is out of range.
	ErrInvalidMaxRetries = errors.New("invalid max_generate_retries")

	// ErrInvalidSource indicates an ingestion source is missing a file or
	// collection name, or a collection name is duplicated.
	ErrInvalidSource = errors.New("invalid ingestion source")

	// ErrInvalidOllamaHost indicates the Ollama host is empty while the
	// ollama provider is selected.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Vector store drivers used in Config.StorageDriver.
const (
	DriverChromem  = "chromem"
	DriverPostgres = "postgres"
)

// DefaultGeminiEmbedderModel is the default Gemini embedder model.
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// Source maps one CSV file to the vector store collection it is ingested
// into. The order of sources in the configuration is the order their
// collections are queried during retrieval.
type Source struct {
	File       string `mapstructure:"file" json:"file"`
	Collection string `mapstructure:"collection" json:"collection"`
}

// OtelConfig configures optional OTLP trace export.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of the OTLP HTTP collector
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"` // only used when provider is "ollama"

	// Vector store configuration
	StorageDriver string `mapstructure:"storage_driver" json:"storage_driver"` // "chromem" (default) or "postgres"
	PersistDir    string `mapstructure:"persist_dir" json:"persist_dir"`       // chromem driver: index directory

	// PostgreSQL connection (postgres driver only; see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: excluded from JSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
	EmbeddingDim     int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`

	// RAG workflow configuration
	TopK               int      `mapstructure:"top_k" json:"top_k"`                               // results per collection
	MaxGenerateRetries int      `mapstructure:"max_generate_retries" json:"max_generate_retries"` // bound on GENERATE re-entries
	CleanColumns       []string `mapstructure:"clean_columns" json:"clean_columns"`               // CSV columns stripped of URL fragments

	// Ingestion sources, in retrieval order
	Sources []Source `mapstructure:"sources" json:"sources"`

	// HTTP server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // per-IP token bucket burst (0 = default)

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	v.SetConfigName("model-rag")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(home, ".model-rag"))

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"config_name", "model-rag.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Storage defaults
	v.SetDefault("storage_driver", DriverChromem)
	v.SetDefault("persist_dir", "./.chroma")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "modelrag")
	v.SetDefault("postgres_password", "modelrag_dev_password")
	v.SetDefault("postgres_db_name", "modelrag")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("embedding_dimension", 768)

	// RAG defaults
	v.SetDefault("top_k", 4)
	v.SetDefault("max_generate_retries", 3)
	v.SetDefault("clean_columns", []string{"data", "input"})

	// Server defaults (frontend dev server origin)
	v.SetDefault("addr", "127.0.0.1:8000")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	// Otel defaults
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4318")
	v.SetDefault("otel.service_name", "model-rag")
	v.SetDefault("otel.environment", "dev")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return "ollama/" + c.ModelName
	case ProviderOpenAI:
		return "openai/" + c.ModelName
	default:
		return "googleai/" + c.ModelName
	}
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "MODELRAG_PROVIDER")
	mustBind("model_name", "MODELRAG_MODEL_NAME")
	mustBind("embedder_model", "MODELRAG_EMBEDDER_MODEL")
	mustBind("ollama_host", "MODELRAG_OLLAMA_HOST")
	mustBind("storage_driver", "MODELRAG_STORAGE_DRIVER")
	mustBind("persist_dir", "MODELRAG_PERSIST_DIR")
	mustBind("addr", "MODELRAG_ADDR")
	mustBind("cors_origins", "MODELRAG_CORS_ORIGINS")
	mustBind("trust_proxy", "MODELRAG_TRUST_PROXY")
	mustBind("rate_burst", "MODELRAG_RATE_BURST")

	// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the
	// Genkit provider plugins, not via Viper.
}
