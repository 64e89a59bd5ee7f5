package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/pkg/utils"
)

// DefaultConcurrency bounds in-flight embedding calls during Persist.
const DefaultConcurrency = 4

// Embedder is the part of an embedding gateway the store needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchOptions tunes a query. Zero values take the search defaults.
type SearchOptions struct {
	Limit     int
	Threshold *float64
}

// Store embeds chunks and hands them to a Backend.
type Store struct {
	embedder    Embedder
	backend     Backend
	concurrency int
	logger      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithConcurrency sets how many chunks are embedded at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = utils.OrNop(l) }
}

// New returns a Store over backend.
func New(embedder Embedder, backend Backend, opts ...Option) *Store {
	s := &Store{
		embedder:    embedder,
		backend:     backend,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Persist embeds every chunk and inserts the rows under documentID.
// Either all rows are written or none are. An empty chunk list is a no-op.
func (s *Store) Persist(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if strings.TrimSpace(documentID) == "" {
		return models.Invalid("document_id", "must not be empty")
	}
	if len(chunks) == 0 {
		return nil
	}
	log := reqctx.Logger(ctx, s.logger)
	start := time.Now()

	rows := make([]models.Row, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			emb, err := s.embedder.Embed(gctx, c.Content)
			if err != nil {
				return fmt.Errorf("%w: chunk %d: %w", models.ErrEmbedding, c.Index, err)
			}
			rows[i] = models.Row{
				DocumentID: documentID,
				Content:    c.Content,
				Embedding:  emb,
				Metadata:   c.Metadata.Clone(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("embedding chunks failed", zap.String("document_id", documentID), zap.Error(err))
		return err
	}

	if err := s.backend.Insert(ctx, rows); err != nil {
		log.Error("insert rows failed",
			zap.String("document_id", documentID),
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return fmt.Errorf("%w: %w", models.ErrStore, err)
	}
	log.Info("document persisted",
		zap.String("document_id", documentID),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Search embeds query once and returns the backend's ranking unchanged.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.SearchResult, error) {
	q := models.SearchQuery{Query: query, Limit: opts.Limit, Threshold: opts.Threshold}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	emb, err := s.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	results, err := s.backend.SimilaritySearch(ctx, emb, *q.Threshold, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStore, err)
	}
	reqctx.Logger(ctx, s.logger).Debug("similarity search",
		zap.String("query", utils.Truncate(q.Query, 80)),
		zap.Int("results", len(results)))
	return results, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrStore, err)
	}
	return n, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
