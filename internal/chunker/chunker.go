// Package chunker splits extracted text into overlapping, metadata-tagged chunks.
package chunker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Defaults, in characters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunker splits text into windows of at most size characters that overlap by
// overlap characters. Windows prefer to end after a newline or a ". " found in
// their last 20%.
type Chunker struct {
	size    int
	overlap int
	logger  *zap.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger that receives the chunk count of every split.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// New returns a chunker. size must be greater than overlap and overlap must not be negative.
func New(size, overlap int, opts ...Option) (*Chunker, error) {
	if size <= 0 {
		return nil, models.Invalid("chunk_size", "must be positive")
	}
	if overlap < 0 {
		return nil, models.Invalid("chunk_overlap", "must not be negative")
	}
	if size <= overlap {
		return nil, models.Invalid("chunk_size", "must be greater than chunk_overlap")
	}
	c := &Chunker{size: size, overlap: overlap}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c, nil
}

// Default returns a chunker with DefaultSize and DefaultOverlap.
func Default(opts ...Option) *Chunker {
	c, _ := New(DefaultSize, DefaultOverlap, opts...)
	return c
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into ordered chunks, each carrying its own copy of meta.
// Empty or all-whitespace text yields no chunks. [PAGE_n] markers are removed
// from the content and set the chunk's page number.
func (c *Chunker) Chunk(text string, meta models.ChunkMetadata) []models.Chunk {
	clean, pages := splitPageMarkers(normalizeNewlines(text))
	if strings.TrimSpace(clean) == "" {
		c.logger.Debug("document chunked", zap.String("source_name", meta.SourceName), zap.Int("chunks", 0))
		return nil
	}

	runes := []rune(clean)
	n := len(runes)
	tail := c.size * 4 / 5

	var chunks []models.Chunk
	start := 0
	for {
		end := min(start+c.size, n)
		if end < n {
			if brk := lastBreak(runes, start+tail, end); brk >= 0 && brk+1-c.overlap > start {
				end = brk + 1
			}
		}

		if content := strings.TrimSpace(string(runes[start:end])); content != "" {
			md := meta.Clone()
			if page, ok := pages.at(runes, start, end); ok {
				md.PageNumber = &page
			}
			chunks = append(chunks, models.Chunk{Content: content, Metadata: md, Index: len(chunks)})
		}

		if end == n {
			break
		}
		start = max(end-c.overlap, 0)
	}

	c.logger.Debug("document chunked",
		zap.String("source_name", meta.SourceName),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// lastBreak returns the index of the last newline, or of the period of the last
// ". ", within runes[from:end]. It returns -1 when there is none.
func lastBreak(runes []rune, from, end int) int {
	for i := end - 1; i >= from && i >= 0; i-- {
		switch runes[i] {
		case '\n':
			return i
		case '.':
			if i+1 < end && runes[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
