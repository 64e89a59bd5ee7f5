package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = ".yomu/data"
	}
	if cfg.Extract.Mode == "" {
		cfg.Extract.Mode = "strict"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == nil {
		o := 200
		cfg.Chunker.Overlap = &o
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAI.Timeout == 0 {
		cfg.Embedding.OpenAI.Timeout = 60 * time.Second
	}
	if cfg.Embedding.OpenAI.MaxRetries == 0 {
		cfg.Embedding.OpenAI.MaxRetries = 3
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "sqlite"
	}
	if cfg.VectorStore.EmbedConcurrency == 0 {
		cfg.VectorStore.EmbedConcurrency = 4
	}
	if cfg.VectorStore.PostgresTable == "" {
		cfg.VectorStore.PostgresTable = "document_sections"
	}
	if cfg.Ingest.PreviewChars == 0 {
		cfg.Ingest.PreviewChars = 10000
	}
	if cfg.Ingest.MaxUploadMB == 0 {
		cfg.Ingest.MaxUploadMB = 50
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".csv"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
