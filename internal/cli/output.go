// Package cli formats command output for the yomu binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// OutputFormat selects human or machine output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for other programs.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or empty (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", models.Invalid("output", fmt.Sprintf("unknown format %q (supported: text, json)", s))
	}
}

const snippetChars = 200

// WriteSearchResults writes a search response to w.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintln(w, strings.Repeat("─", 57))
		fmt.Fprintf(w, "#%d  similarity %.4f  document %s\n", i+1, r.Similarity, r.DocumentID)
		source := r.Metadata.SourceName
		if r.Metadata.PageNumber != nil {
			source = fmt.Sprintf("%s, page %d", source, *r.Metadata.PageNumber)
		}
		if source != "" {
			fmt.Fprintf(w, "Source: %s\n", source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.CollapseSpace(r.Content), snippetChars))
	}
	return nil
}

// WriteIngestResult writes the outcome of one ingestion.
func WriteIngestResult(w io.Writer, resp models.IngestResponse, chunks int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Ingested %s as %s (%d chunks)\n", resp.Filename, resp.DocumentID, chunks)
	if resp.Content != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(resp.Content, snippetChars))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
