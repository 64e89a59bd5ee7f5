package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/hyperjump/yomu/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// docxToken matches, in document order, text runs, tabs, line breaks and paragraph ends.
var docxToken = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:tab/>|<w:br[^>]*/>|</w:p>`)

var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	content, err := readZipEntry(zr, contentTypesPath)
	if err != nil || content == nil {
		return ""
	}
	if m := partNameRe.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	if m := partNameRe2.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	return ""
}

// readZipEntry returns the bytes of the named entry, or nil when it does not exist.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// extractDOCX extracts text from .docx bytes. Runs inside a paragraph are concatenated
// and paragraphs are separated by newlines, so the chunker can break on them.
func extractDOCX(_ context.Context, _ *Extractor, content []byte) (string, models.ExtractMetadata, error) {
	var meta models.ExtractMetadata
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", meta, fmt.Errorf("%w: DOCX is not a zip: %v", models.ErrExtraction, err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", meta, fmt.Errorf("%w: DOCX read %s: %v", models.ErrExtraction, docPath, err)
	}
	if docXML == nil {
		return "", meta, fmt.Errorf("%w: DOCX %s not found", models.ErrExtraction, docPath)
	}

	var b, para strings.Builder
	flush := func() {
		line := strings.TrimSpace(para.String())
		para.Reset()
		if line == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	for _, m := range docxToken.FindAllSubmatch(docXML, -1) {
		switch tok := string(m[0]); {
		case tok == "</w:p>":
			flush()
		case tok == "<w:tab/>":
			para.WriteByte('\t')
		case strings.HasPrefix(tok, "<w:br"):
			para.WriteByte('\n')
		default:
			para.WriteString(html.UnescapeString(string(m[1])))
		}
	}
	flush()
	return b.String(), meta, nil
}
