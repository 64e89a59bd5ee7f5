package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvOpenAIAPIKey = "YOMU_OPENAI_API_KEY"
	EnvPostgresDSN  = "YOMU_POSTGRES_DSN"
	EnvBackend      = "YOMU_BACKEND"
	EnvProvider     = "YOMU_EMBEDDING_PROVIDER"
	EnvDataDir      = "YOMU_DATA_DIR"
	EnvPort         = "YOMU_PORT"
	EnvDebug        = "YOMU_DEBUG"
)

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from YOMU_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		cfg.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.VectorStore.PostgresDSN = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.VectorStore.Backend = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = debug
	}
	return nil
}
