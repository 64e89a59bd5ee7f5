// Package config provides configuration loading and structs for the yomu server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Extract     ExtractConfig     `yaml:"extract"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the data directory; backend paths default to files inside it.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	// CatalogPath is the SQLite file recording ingested documents.
	CatalogPath string `yaml:"catalog_path"`
}

// ExtractConfig controls format handling.
type ExtractConfig struct {
	// Mode is "strict" (unknown formats are rejected) or "lenient" (decoded as text).
	Mode        string `yaml:"mode"`
	PageMarkers bool   `yaml:"page_markers"`
}

// ChunkerConfig holds chunk window settings in characters.
type ChunkerConfig struct {
	Size    int  `yaml:"size"`
	Overlap *int `yaml:"overlap"`
}

// OverlapOrDefault returns the configured overlap; 200 when unset.
func (c *ChunkerConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return 200
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "mock", "onnx", "openai".
	Provider   string       `yaml:"provider"`
	Dimensions int          `yaml:"dimensions"`
	CacheSize  int          `yaml:"cache_size"`
	ModelPath  string       `yaml:"model_path"`
	MaxTokens  int          `yaml:"max_tokens"`
	OpenAI     OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	BatchSize  int           `yaml:"batch_size"`
}

// VectorStoreConfig selects the backing store for chunk rows.
type VectorStoreConfig struct {
	// Backend is one of "memory", "sqlite", "badger", "postgres".
	Backend          string `yaml:"backend"`
	EmbedConcurrency int    `yaml:"embed_concurrency"`
	MemoryPath       string `yaml:"memory_path"`
	SQLitePath       string `yaml:"sqlite_path"`
	BadgerDir        string `yaml:"badger_dir"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresTable    string `yaml:"postgres_table"`
}

// IngestConfig holds ingestion limits.
type IngestConfig struct {
	PreviewChars int   `yaml:"preview_chars"`
	MaxUploadMB  int64 `yaml:"max_upload_mb"`
}

// WatchConfig holds drop-folder settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies .env and environment
// overrides, expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	var cfg Config
	if err := finish(&cfg, ""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	ApplyDefaults(cfg)

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	resolve := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(cfg.Storage.DataDir, name)
			return
		}
		*p = expandPath(*p, configDir)
	}
	resolve(&cfg.Storage.CatalogPath, "catalog.db")
	resolve(&cfg.VectorStore.MemoryPath, "vectors.bin")
	resolve(&cfg.VectorStore.SQLitePath, "yomu.db")
	resolve(&cfg.VectorStore.BadgerDir, "badger")
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	return cfg.Validate()
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.yomu/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".yomu", "config.yaml")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if configDir == "" {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
