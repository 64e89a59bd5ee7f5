package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/models"
)

var pageMarkerRe = regexp.MustCompile(`\[PAGE_\d+\]\n?`)

// extractPDF never fails: when the text engine errors or finds nothing the
// result degrades to empty text and a warning is logged.
func extractPDF(ctx context.Context, e *Extractor, content []byte) (string, models.ExtractMetadata, error) {
	meta, err := pdfMetadata(content)
	if err != nil {
		e.logger.Debug("pdf metadata unavailable", zap.Error(err))
	}

	pages, err := pdfPages(ctx, content)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", meta, ctxErr
	}
	if err != nil {
		e.logger.Warn("pdf text extraction failed, continuing with empty content", zap.Error(err))
		return "", meta, nil
	}
	if meta.PageCount == 0 {
		meta.PageCount = len(pages)
	}

	var buf strings.Builder
	for i, text := range pages {
		if e.pageMarkers {
			fmt.Fprintf(&buf, "[PAGE_%d]\n", i+1)
		}
		buf.WriteString(text)
		if i < len(pages)-1 {
			buf.WriteByte('\n')
		}
	}
	out := buf.String()
	if strings.TrimSpace(stripPageMarkers(out)) == "" {
		e.logger.Warn("pdf yielded no text", zap.Int("pages", len(pages)))
	}
	return out, meta, nil
}

// pdfPages returns the plain text of every page, in order. Null pages yield "".
func pdfPages(ctx context.Context, content []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: malformed PDF: %v", models.ErrExtraction, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF: %v", models.ErrExtraction, err)
	}
	numPages := r.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extract page %d: %v", models.ErrExtraction, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pdfMetadata reads page count, author and title from the document structure.
func pdfMetadata(content []byte) (models.ExtractMetadata, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return models.ExtractMetadata{}, fmt.Errorf("pdfcpu read: %w", err)
	}
	return models.ExtractMetadata{
		PageCount: pctx.PageCount,
		Author:    strings.TrimSpace(pctx.XRefTable.Author),
		Title:     strings.TrimSpace(pctx.XRefTable.Title),
	}, nil
}

func stripPageMarkers(s string) string {
	return pageMarkerRe.ReplaceAllString(s, "")
}
