// Package extract converts uploaded files into plain text plus basic metadata.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Mode decides what happens to files whose format is not recognized.
type Mode string

const (
	// ModeStrict rejects unrecognized formats with an UnsupportedFormatError.
	ModeStrict Mode = "strict"
	// ModeLenient decodes unrecognized formats as plain text and never fails on format.
	ModeLenient Mode = "lenient"
)

// ParseMode parses a configured mode name. Empty means strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	default:
		return "", models.Invalid("extract.mode", fmt.Sprintf("unknown mode %q", s))
	}
}

// File is an uploaded file.
type File struct {
	Name     string
	MIMEType string
	Content  []byte
}

// Result is the output of an extraction.
type Result struct {
	Text     string
	Format   models.Format
	Metadata models.ExtractMetadata
}

// strategy extracts text and metadata from the bytes of one format.
type strategy func(ctx context.Context, e *Extractor, content []byte) (string, models.ExtractMetadata, error)

// Extractor extracts plain text from document files.
type Extractor struct {
	mode        Mode
	pageMarkers bool
	logger      *zap.Logger
	strategies  map[models.Format]strategy
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMode sets the handling of unrecognized formats.
func WithMode(m Mode) Option {
	return func(e *Extractor) { e.mode = m }
}

// WithPageMarkers prefixes each PDF page with a [PAGE_n] marker.
func WithPageMarkers(on bool) Option {
	return func(e *Extractor) { e.pageMarkers = on }
}

// WithLogger sets the logger used for degraded extractions.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor. The default mode is strict.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		mode: ModeStrict,
		strategies: map[models.Format]strategy{
			models.FormatPDF:         extractPDF,
			models.FormatDOCX:        extractDOCX,
			models.FormatSpreadsheet: extractSpreadsheet,
			models.FormatText:        extractPlain,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Mode returns the extractor's mode.
func (e *Extractor) Mode() Mode {
	return e.mode
}

// Extract returns the text content of f.
func (e *Extractor) Extract(ctx context.Context, f File) (*Result, error) {
	format := Classify(f.Name, f.MIMEType)
	if format == models.FormatUnknown && Ext(f.Name) == "" && f.MIMEType == "" {
		format = Sniff(f.Content)
	}
	if format == models.FormatUnknown {
		if e.mode == ModeStrict {
			return nil, &models.UnsupportedFormatError{Extension: strings.TrimPrefix(Ext(f.Name), ".")}
		}
		format = models.FormatText
	}

	text, meta, err := e.strategies[format](ctx, e, f.Content)
	if err != nil {
		return nil, err
	}
	meta.SourceName = f.Name
	return &Result{Text: text, Format: format, Metadata: meta}, nil
}

// ExtractFile reads the file at path and extracts it.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(ctx, File{Name: filepath.Base(path), Content: content})
}
