// Package ingest sequences extraction, chunking and persistence for uploaded files.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/pkg/utils"
)

// DefaultPreviewChars is how much of the extracted text a Result carries.
const DefaultPreviewChars = 10000

// Mode selects how far a file travels through the pipeline.
type Mode string

const (
	// ModeRAG extracts, chunks, embeds and persists.
	ModeRAG Mode = "rag"
	// ModePreview only extracts.
	ModePreview Mode = "preview"
)

// ParseMode parses a mode name. Empty means ModeRAG.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRAG:
		return ModeRAG, nil
	case ModePreview:
		return ModePreview, nil
	default:
		return "", models.Invalid("mode", fmt.Sprintf("unknown mode %q (supported: rag, preview)", s))
	}
}

// Extractor turns an uploaded file into text.
type Extractor interface {
	Extract(ctx context.Context, f extract.File) (*extract.Result, error)
}

// Chunker splits text into chunks that carry meta.
type Chunker interface {
	Chunk(text string, meta models.ChunkMetadata) []models.Chunk
}

// Persister embeds and stores the chunks of one document.
type Persister interface {
	Persist(ctx context.Context, documentID string, chunks []models.Chunk) error
}

// Catalog records ingested documents.
type Catalog interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
}

// IDGenerator returns a fresh document ID.
type IDGenerator func() (string, error)

// UUIDv7 is the default IDGenerator.
func UUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Result is what a caller gets back from one ingestion.
type Result struct {
	DocumentID string
	Filename   string
	// Content is a prefix of the extracted text, at most the preview length.
	Content  string
	Document *models.Document
	Chunks   int
}

// Response converts r to the client-facing shape.
func (r *Result) Response() models.IngestResponse {
	return models.IngestResponse{DocumentID: r.DocumentID, Filename: r.Filename, Content: r.Content}
}

// Orchestrator runs files through extraction, chunking and persistence.
type Orchestrator struct {
	extractor    Extractor
	chunker      Chunker
	store        Persister
	catalog      Catalog
	newID        IDGenerator
	now          func() time.Time
	previewChars int
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = utils.OrNop(l) }
}

// WithIDGenerator replaces the UUIDv7 document IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.newID = g
		}
	}
}

// WithPreviewChars sets the preview length in characters.
func WithPreviewChars(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.previewChars = n
		}
	}
}

// WithCatalog records every document ingested in RAG mode.
func WithCatalog(c Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// New returns an Orchestrator.
func New(extractor Extractor, chunker Chunker, store Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:    extractor,
		chunker:      chunker,
		store:        store,
		newID:        UUIDv7,
		now:          func() time.Time { return time.Now().UTC() },
		previewChars: DefaultPreviewChars,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ingest extracts f and, in ModeRAG, chunks and persists it under a fresh document ID.
// Every call creates a new document, including repeated uploads of the same file.
func (o *Orchestrator) Ingest(ctx context.Context, f extract.File, mode Mode) (*Result, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, models.Invalid("file", "missing file or file name")
	}
	if mode == "" {
		mode = ModeRAG
	}
	if mode != ModeRAG && mode != ModePreview {
		return nil, models.Invalid("mode", fmt.Sprintf("unknown mode %q (supported: rag, preview)", mode))
	}

	ctx, _ = reqctx.Ensure(ctx)
	log := reqctx.Logger(ctx, o.logger).With(zap.String("filename", f.Name), zap.String("mode", string(mode)))
	start := time.Now()

	extracted, err := o.extractor.Extract(ctx, f)
	if err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}

	id, err := o.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document id: %w", err)
	}
	doc := &models.Document{
		ID:        id,
		Filename:  f.Name,
		Format:    extracted.Format,
		Content:   extracted.Text,
		Metadata:  extracted.Metadata,
		CreatedAt: o.now(),
	}
	log = log.With(zap.String("document_id", id), zap.String("format", string(doc.Format)))

	res := &Result{
		DocumentID: id,
		Filename:   f.Name,
		Content:    utils.Prefix(doc.Content, o.previewChars),
		Document:   doc,
	}
	if mode == ModePreview {
		log.Info("document previewed", zap.Duration("took", time.Since(start)))
		return res, nil
	}

	chunks := o.chunker.Chunk(doc.Content, models.ChunkMetadata{
		SourceID:   id,
		SourceName: f.Name,
		PageCount:  doc.Metadata.PageCount,
	})
	if err := o.store.Persist(ctx, id, chunks); err != nil {
		log.Error("persist failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, fmt.Errorf("failed to persist document %s: %w", id, err)
	}
	res.Chunks = len(chunks)

	if o.catalog != nil {
		if err := o.catalog.CreateDocument(ctx, doc); err != nil {
			log.Warn("catalog write failed", zap.Error(err))
		}
	}
	log.Info("document ingested", zap.Int("chunks", len(chunks)), zap.Duration("took", time.Since(start)))
	return res, nil
}
