// Package models defines core data structures for documents, chunks, and search results.
package models

import "time"

// Format is the detected format of an ingested file. The set is closed.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDOCX        Format = "docx"
	FormatSpreadsheet Format = "spreadsheet"
	FormatText        Format = "text"
	// FormatUnknown is decoded as plain text in lenient mode and rejected in strict mode.
	FormatUnknown Format = "unknown"
)

// ExtractMetadata is what a format extractor learns about a file besides its text.
type ExtractMetadata struct {
	SourceName string `json:"source_name"`
	PageCount  int    `json:"page_count,omitempty"`
	Author     string `json:"author,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Document represents one ingested source file. It is never mutated after creation.
type Document struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Format    Format          `json:"format"`
	Content   string          `json:"content"`
	Metadata  ExtractMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}
