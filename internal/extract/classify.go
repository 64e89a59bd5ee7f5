package extract

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hyperjump/yomu/internal/models"
)

var extFormats = map[string]models.Format{
	".pdf":      models.FormatPDF,
	".docx":     models.FormatDOCX,
	".xlsx":     models.FormatSpreadsheet,
	".xlsm":     models.FormatSpreadsheet,
	".xls":      models.FormatSpreadsheet,
	".csv":      models.FormatSpreadsheet,
	".txt":      models.FormatText,
	".md":       models.FormatText,
	".markdown": models.FormatText,
	".log":      models.FormatText,
	".json":     models.FormatText,
	".html":     models.FormatText,
	".htm":      models.FormatText,
	".xml":      models.FormatText,
	".yaml":     models.FormatText,
	".yml":      models.FormatText,
}

var mimeFormats = map[string]models.Format{
	"application/pdf": models.FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": models.FormatDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       models.FormatSpreadsheet,
	"application/vnd.ms-excel":                                                models.FormatSpreadsheet,
	"text/csv":                                                                models.FormatSpreadsheet,
}

// Classify maps a file name and declared MIME type to a Format. The extension wins;
// the MIME type is consulted only when the extension is missing or unrecognized.
func Classify(name, mimeType string) models.Format {
	if f, ok := extFormats[Ext(name)]; ok {
		return f
	}
	return classifyMIME(mimeType)
}

func classifyMIME(mimeType string) models.Format {
	if mimeType == "" {
		return models.FormatUnknown
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return models.FormatUnknown
	}
	if f, ok := mimeFormats[mt]; ok {
		return f
	}
	if strings.HasPrefix(mt, "text/") {
		return models.FormatText
	}
	return models.FormatUnknown
}

// Sniff classifies raw bytes by content. Used only when a file has neither an extension nor a MIME type.
func Sniff(content []byte) models.Format {
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		if f := classifyMIME(m.String()); f != models.FormatUnknown {
			return f
		}
	}
	return models.FormatUnknown
}

// Ext returns the lower-cased extension of name including the dot, or "".
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
