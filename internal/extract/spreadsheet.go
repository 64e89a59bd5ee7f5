package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/yomu/internal/models"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// extractSpreadsheet serializes the first sheet of a workbook as CSV. Later sheets
// are ignored. Plain CSV input is parsed and re-serialized.
func extractSpreadsheet(_ context.Context, _ *Extractor, content []byte) (string, models.ExtractMetadata, error) {
	var meta models.ExtractMetadata
	var rows [][]string
	var err error
	if bytes.HasPrefix(content, zipMagic) || bytes.HasPrefix(content, oleMagic) {
		rows, err = firstSheetRows(content)
	} else {
		rows, err = csvRows(content)
	}
	if err != nil {
		return "", meta, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", meta, fmt.Errorf("%w: write CSV: %v", models.ErrExtraction, err)
	}
	return strings.TrimSpace(buf.String()), meta, nil
}

func firstSheetRows(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", models.ErrExtraction, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: get rows for sheet %q: %v", models.ErrExtraction, sheets[0], err)
	}
	return rows, nil
}

func csvRows(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse CSV: %v", models.ErrExtraction, err)
	}
	return rows, nil
}
