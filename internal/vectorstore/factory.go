package vectorstore

import (
	"context"
	"fmt"

	"github.com/hyperjump/yomu/internal/config"
)

// OpenBackend creates the backend selected by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.VectorStoreConfig, dimensions int) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryBackend(dimensions, cfg.MemoryPath)
	case BackendSQLite, "":
		return NewSQLiteBackend(cfg.SQLitePath, dimensions)
	case BackendBadger:
		return NewBadgerBackend(cfg.BadgerDir, dimensions)
	case BackendPostgres:
		return NewPostgresBackend(ctx, cfg.PostgresDSN, cfg.PostgresTable, dimensions)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s (supported: memory, sqlite, badger, postgres)", cfg.Backend)
	}
}
