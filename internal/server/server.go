// Package server provides the HTTP API for yomu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/internal/retrieval"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/internal/vectorstore"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Ingester runs uploaded files through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, f extract.File, mode ingest.Mode) (*ingest.Result, error)
}

// Searcher answers similarity queries over stored chunks.
type Searcher interface {
	Search(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]*models.SearchResult, error)
	Count(ctx context.Context) (int64, error)
	Backend() vectorstore.Backend
}

// ContextRetriever selects the relevant part of one document.
type ContextRetriever interface {
	RelevantContext(ctx context.Context, query, sourceText, sourceName string) (*retrieval.Context, error)
}

// WatchService manages watched directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the yomu API.
type Server struct {
	ingester  Ingester
	searcher  Searcher
	retriever ContextRetriever
	catalog   storage.Storage
	watch     WatchService

	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog enables the document listing endpoints and document counts in /status.
func WithCatalog(c storage.Storage) Option {
	return func(s *Server) { s.catalog = c }
}

// WithRetriever replaces the default context retriever.
func WithRetriever(r ContextRetriever) Option {
	return func(s *Server) { s.retriever = r }
}

// WithWatch enables the watch endpoints. Directory changes are saved to configPath when it is set.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg *config.Config, ingester Ingester, searcher Searcher, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		ingester: ingester,
		searcher: searcher,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retriever == nil {
		s.retriever = retrieval.NewService(retrieval.WithLogger(s.logger))
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/search", s.handleSearch)
		r.Post("/context", s.handleContext)
		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// requestID carries chi's request ID into reqctx and echoes it to the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, id := reqctx.Ensure(r.Context())
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
