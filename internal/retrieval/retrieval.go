// Package retrieval picks the parts of a single document that best answer a question.
package retrieval

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/chunker"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Window sizes for context selection. Larger than ingestion chunks so each pick carries more surrounding text.
const (
	ContextChunkSize    = 1500
	ContextChunkOverlap = 300
	maxPicks            = 2
	minTermLen          = 4
	separator           = "\n\n---\n\n"
)

// Intent is the conversational intent of a question.
type Intent string

const (
	IntentSpecific Intent = "specific_query"
	IntentSummary  Intent = "general_summary"
	IntentFollowUp Intent = "follow_up"
)

var followUpRe = regexp.MustCompile(`\b(this|that|it)\b`)

// DetectIntent classifies query. Summary phrases win over follow-up pronouns.
func DetectIntent(query string) Intent {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "summary"), strings.Contains(q, "summarize"), strings.Contains(q, "tell me about"):
		return IntentSummary
	case followUpRe.MatchString(q):
		return IntentFollowUp
	default:
		return IntentSpecific
	}
}

// Metadata describes where a Context came from.
type Metadata struct {
	SourceID   string `json:"sourceId"`
	SourceName string `json:"sourceName"`
	Intent     Intent `json:"intent"`
}

// Context is the selected text for one question.
type Context struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Service selects relevant context from document text.
type Service struct {
	chunker *chunker.Chunker
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = utils.OrNop(l) }
}

// NewService returns a Service using 1500/300 character windows.
func NewService(opts ...Option) *Service {
	c, err := chunker.New(ContextChunkSize, ContextChunkOverlap)
	if err != nil {
		panic(err)
	}
	s := &Service{chunker: c, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RelevantContext returns the two windows of sourceText that match the most query terms,
// joined by a separator. Text that fits in one window is returned whole.
func (s *Service) RelevantContext(ctx context.Context, query, sourceText, sourceName string) (*Context, error) {
	q := models.ContextQuery{Query: query, Content: sourceText, SourceName: sourceName}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	intent := DetectIntent(q.Query)
	reqctx.Logger(ctx, s.logger).Info("selecting context",
		zap.String("source_name", sourceName),
		zap.Int("query_length", len(q.Query)),
		zap.String("intent", string(intent)))

	out := &Context{
		Content: sourceText,
		Metadata: Metadata{
			SourceID:   base64.StdEncoding.EncodeToString([]byte(sourceName)),
			SourceName: sourceName,
			Intent:     intent,
		},
	}

	chunks := s.chunker.Chunk(sourceText, models.ChunkMetadata{SourceName: sourceName})
	if len(chunks) <= 1 {
		return out, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	picks, err := rank(texts, queryTerms(q.Query))
	if err != nil {
		return nil, err
	}
	selected := make([]string, len(picks))
	for i, p := range picks {
		selected[i] = texts[p]
	}
	out.Content = strings.Join(selected, separator)
	return out, nil
}

// queryTerms returns the lowercased words of query longer than three characters.
func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(f)) >= minTermLen {
			terms = append(terms, f)
		}
	}
	return terms
}

type chunkDoc struct {
	Content string `json:"content"`
}

// rank indexes texts in a throwaway in-memory index and returns the indexes of the best
// maxPicks texts. Texts no term matched fill remaining slots in document order.
func rank(texts []string, terms []string) ([]int, error) {
	picks := make([]int, 0, maxPicks)
	if len(terms) > 0 {
		hits, err := search(texts, terms)
		if err != nil {
			return nil, err
		}
		picks = append(picks, hits...)
	}
	taken := make(map[int]bool, len(picks))
	for _, p := range picks {
		taken[p] = true
	}
	for i := 0; i < len(texts) && len(picks) < maxPicks; i++ {
		if !taken[i] {
			picks = append(picks, i)
		}
	}
	return picks, nil
}

// chunkID zero-pads i so that sorting by _id keeps chunk order.
func chunkID(i int) string {
	return fmt.Sprintf("%06d", i)
}

func search(texts []string, terms []string) ([]int, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create context index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, t := range texts {
		if err := batch.Index(chunkID(i), chunkDoc{Content: t}); err != nil {
			return nil, fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	mq := bleve.NewMatchQuery(strings.Join(terms, " "))
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	req.Size = maxPicks
	req.SortBy([]string{"-_score", "_id"})
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("context search failed: %w", err)
	}
	out := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}
