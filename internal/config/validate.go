package config

import (
	"fmt"
	"slices"

	"github.com/hyperjump/yomu/internal/models"
)

var (
	backends  = []string{"memory", "sqlite", "badger", "postgres"}
	providers = []string{"mock", "onnx", "openai"}
	modes     = []string{"strict", "lenient"}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Chunker.Size <= 0 {
		return models.Invalid("chunker.size", "must be positive")
	}
	overlap := c.Chunker.OverlapOrDefault()
	if overlap < 0 {
		return models.Invalid("chunker.overlap", "must not be negative")
	}
	if c.Chunker.Size <= overlap {
		return models.Invalid("chunker.size", fmt.Sprintf("must be greater than chunker.overlap (%d)", overlap))
	}
	if !slices.Contains(modes, c.Extract.Mode) {
		return models.Invalid("extract.mode", fmt.Sprintf("%q is not one of %v", c.Extract.Mode, modes))
	}
	if !slices.Contains(providers, c.Embedding.Provider) {
		return models.Invalid("embedding.provider", fmt.Sprintf("%q is not one of %v", c.Embedding.Provider, providers))
	}
	if c.Embedding.Dimensions <= 0 {
		return models.Invalid("embedding.dimensions", "must be positive")
	}
	if !slices.Contains(backends, c.VectorStore.Backend) {
		return models.Invalid("vector_store.backend", fmt.Sprintf("%q is not one of %v", c.VectorStore.Backend, backends))
	}
	if c.VectorStore.Backend == "postgres" && c.VectorStore.PostgresDSN == "" {
		return models.Invalid("vector_store.postgres_dsn", "required for the postgres backend")
	}
	if c.VectorStore.EmbedConcurrency < 1 {
		return models.Invalid("vector_store.embed_concurrency", "must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.Invalid("server.port", "out of range")
	}
	return nil
}
