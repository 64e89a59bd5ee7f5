package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/chunker"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/embedding"
	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/internal/vectorstore"
	"github.com/hyperjump/yomu/pkg/utils"
)

// loadConfig resolves the config to use. With no explicit path, ./config.yaml wins over
// the default path so that running from a project directory picks up its config.
// A missing default config yields built-in defaults. Returns the path that was used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				cfg, err := config.Load(local)
				return cfg, local, err
			}
		}
		path = config.DefaultPath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, path, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app holds the wired pipeline shared by the commands.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	embedder   embedding.Embedder
	store      *vectorstore.Store
	catalog    *storage.SQLiteStorage
	extractor  *extract.Extractor
	chunker    *chunker.Chunker
	ingester   *ingest.Orchestrator
}

func openApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug = debug || cfg.Debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))

	a := &app{cfg: cfg, configPath: resolved, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	var err error
	a.embedder, err = embedding.New(cfg.Embedding, a.logger)
	if err != nil {
		return err
	}
	backend, err := vectorstore.OpenBackend(ctx, cfg.VectorStore, cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	a.store = vectorstore.New(a.embedder, backend,
		vectorstore.WithConcurrency(cfg.VectorStore.EmbedConcurrency),
		vectorstore.WithLogger(a.logger))

	a.catalog, err = storage.NewSQLiteStorage(cfg.Storage.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to open document catalog: %w", err)
	}

	mode, err := extract.ParseMode(cfg.Extract.Mode)
	if err != nil {
		return err
	}
	a.extractor = extract.NewExtractor(
		extract.WithMode(mode),
		extract.WithPageMarkers(cfg.Extract.PageMarkers),
		extract.WithLogger(a.logger))

	a.chunker, err = chunker.New(cfg.Chunker.Size, cfg.Chunker.OverlapOrDefault(), chunker.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.ingester = a.newIngester(a.extractor)
	return nil
}

func (a *app) newIngester(e ingest.Extractor) *ingest.Orchestrator {
	return ingest.New(e, a.chunker, a.store,
		ingest.WithLogger(a.logger),
		ingest.WithCatalog(a.catalog),
		ingest.WithPreviewChars(a.cfg.Ingest.PreviewChars))
}

// watchIngester decodes files of unrecognized type as text, since the watch list names
// the extensions the user wants ingested.
func (a *app) watchIngester() *ingest.Orchestrator {
	lenient := extract.NewExtractor(
		extract.WithMode(extract.ModeLenient),
		extract.WithPageMarkers(a.cfg.Extract.PageMarkers),
		extract.WithLogger(a.logger))
	return a.newIngester(lenient)
}

// Close releases everything openApp opened.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("vector store close failed", zap.Error(err))
		}
	}
	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	_ = a.logger.Sync()
}
