package config

import "fmt"

// Validate checks the configuration for invalid values.
// Called by Load immediately after unmarshalling (fail-fast).
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host must be set for the ollama provider", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q, %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama, ProviderOpenAI)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	switch c.StorageDriver {
	case DriverChromem:
		if c.PersistDir == "" {
			return fmt.Errorf("%w: persist_dir must not be empty for the chromem driver", ErrInvalidPersistDir)
		}
	case DriverPostgres:
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
		if c.EmbeddingDim < 1 || c.EmbeddingDim > 16000 {
			return fmt.Errorf("%w: %d (pgvector supports up to 16000 dimensions)", ErrInvalidEmbeddingDim, c.EmbeddingDim)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidStorageDriver, c.StorageDriver, DriverChromem, DriverPostgres)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (expected 1-100)", ErrInvalidTopK, c.TopK)
	}
	if c.MaxGenerateRetries < 1 || c.MaxGenerateRetries > 10 {
		return fmt.Errorf("%w: %d (expected 1-10)", ErrInvalidMaxRetries, c.MaxGenerateRetries)
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.File == "" {
			return fmt.Errorf("%w: sources[%d] has no file", ErrInvalidSource, i)
		}
		if src.Collection == "" {
			return fmt.Errorf("%w: sources[%d] has no collection name", ErrInvalidSource, i)
		}
		if _, dup := seen[src.Collection]; dup {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidSource, src.Collection)
		}
		seen[src.Collection] = struct{}{}
	}

	return nil
}

// Collections returns the configured collection names in registration order.
// Retrieval queries collections in exactly this order.
func (c *Config) Collections() []string {
	names := make([]string, len(c.Sources))
	for i, src := range c.Sources {
		names[i] = src.Collection
	}
	return names
}
