package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/yomu/internal/models"
)

func extractBytes(t *testing.T, e *Extractor, name string, content []byte) *Result {
	t.Helper()
	res, err := e.Extract(context.Background(), File{Name: name, Content: content})
	if err != nil {
		t.Fatalf("Extract(%s): %v", name, err)
	}
	return res
}

func TestExtract_plain(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "notes.txt", []byte("Hello world\nLine 2"))
	if res.Text != "Hello world\nLine 2" {
		t.Errorf("got %q", res.Text)
	}
	if res.Format != models.FormatText {
		t.Errorf("format = %s", res.Format)
	}
	if res.Metadata.SourceName != "notes.txt" {
		t.Errorf("source name = %q", res.Metadata.SourceName)
	}
}

func TestExtract_plainInvalidUTF8(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "readme.md", []byte("hello\x80world"))
	if res.Text != "hello\uFFFDworld" {
		t.Errorf("got %q", res.Text)
	}
}

func TestExtract_strictRejectsUnknownExtension(t *testing.T) {
	e := NewExtractor(WithMode(ModeStrict))
	_, err := e.Extract(context.Background(), File{Name: "data.xyz", Content: []byte("abc")})
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	var uf *models.UnsupportedFormatError
	if !errors.As(err, &uf) || uf.Extension != "xyz" {
		t.Errorf("error should name xyz, got %v", err)
	}
}

func TestExtract_lenientDecodesUnknownAsText(t *testing.T) {
	e := NewExtractor(WithMode(ModeLenient))
	res := extractBytes(t, e, "data.xyz", []byte("raw bytes"))
	if res.Text != "raw bytes" || res.Format != models.FormatText {
		t.Errorf("got %q (%s)", res.Text, res.Format)
	}
}

func TestExtract_mimeFallback(t *testing.T) {
	res, err := NewExtractor().Extract(context.Background(), File{
		Name:     "upload",
		MIMEType: "text/csv; charset=utf-8",
		Content:  []byte("a,b\n1,2\n"),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Format != models.FormatSpreadsheet {
		t.Errorf("format = %s", res.Format)
	}
	if res.Text != "a,b\n1,2" {
		t.Errorf("got %q", res.Text)
	}
}

func TestExtract_sniffWhenNoHints(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "README", []byte("just some text"))
	if res.Format != models.FormatText {
		t.Errorf("format = %s", res.Format)
	}
}

func twoSheetWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Title")
	_ = f.SetCellValue("Sheet1", "A2", "Value 1")
	_ = f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Sheet2"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	_ = f.SetCellValue("Sheet2", "A1", "Hidden")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_spreadsheetFirstSheetOnly(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "book.xlsx", twoSheetWorkbook(t))
	if res.Text != "Title\nValue 1,Value 2" {
		t.Errorf("got %q", res.Text)
	}
	if bytes.Contains([]byte(res.Text), []byte("Hidden")) {
		t.Error("second sheet leaked into output")
	}
}

func TestExtract_csvWorkbookContentUnderCSVName(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "export.csv", twoSheetWorkbook(t))
	if res.Text != "Title\nValue 1,Value 2" {
		t.Errorf("got %q", res.Text)
	}
}

func TestExtract_csvReserialized(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "table.csv", []byte("\xef\xbb\xbfname,\"city, state\"\r\nada,\"london, uk\"\r\n"))
	want := "name,\"city, state\"\nada,\"london, uk\""
	if res.Text != want {
		t.Errorf("got %q, want %q", res.Text, want)
	}
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	res, err := NewExtractor().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if res.Text != "File content" {
		t.Errorf("got %q", res.Text)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	_, err := NewExtractor().ExtractFile(context.Background(), "/nonexistent/file.txt")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestExtract_pdfDegradesToEmpty(t *testing.T) {
	res, err := NewExtractor().Extract(context.Background(), File{Name: "scan.pdf", Content: []byte("%PDF-1.4 not really a pdf")})
	if err != nil {
		t.Fatalf("pdf failures should degrade, got %v", err)
	}
	if res.Text != "" || res.Format != models.FormatPDF {
		t.Errorf("got %q (%s)", res.Text, res.Format)
	}
}

// minimalDocx returns a minimal .docx zip bytes with word/document.xml containing the given body XML.
func minimalDocx(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p w:rsidR="00AB"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestExtract_docx(t *testing.T) {
	res := extractBytes(t, NewExtractor(), "doc.docx", minimalDocx(para("Searchable docx content")))
	if res.Text != "Searchable docx content" {
		t.Errorf("got %q", res.Text)
	}
	if res.Metadata.PageCount != 0 {
		t.Errorf("docx should carry no page count, got %d", res.Metadata.PageCount)
	}
}

func TestExtract_docxParagraphsAndRuns(t *testing.T) {
	body := `<w:p><w:r><w:t>Hel</w:t></w:r><w:r><w:t>lo</w:t></w:r></w:p>` +
		para("Fish &amp; chips") +
		`<w:p></w:p>` +
		`<w:tbl><w:tr><w:tc>` + para("cell") + `</w:tc></w:tr></w:tbl>`
	res := extractBytes(t, NewExtractor(), "doc.docx", minimalDocx(body))
	want := "Hello\nFish & chips\ncell"
	if res.Text != want {
		t.Errorf("got %q, want %q", res.Text, want)
	}
}

func TestExtract_docxWithContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`},
		{"content type first", `<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zip.NewWriter(&buf)
			ct, _ := w.Create("[Content_Types].xml")
			_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
` + tt.override + `
</Types>`))
			fw, _ := w.Create("word/document2.xml")
			_, _ = fw.Write([]byte(`<w:document><w:body>` + para("Content from document2") + `</w:body></w:document>`))
			_ = w.Close()

			res := extractBytes(t, NewExtractor(), "doc.docx", buf.Bytes())
			if res.Text != "Content from document2" {
				t.Errorf("got %q", res.Text)
			}
		})
	}
}

func TestExtract_docxNotZip(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), File{Name: "bad.docx", Content: []byte("not a zip")})
	if !errors.Is(err, models.ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name, mime string
		want       models.Format
	}{
		{"a.PDF", "", models.FormatPDF},
		{"a.docx", "", models.FormatDOCX},
		{"a.xlsx", "", models.FormatSpreadsheet},
		{"a.csv", "", models.FormatSpreadsheet},
		{"a.txt", "", models.FormatText},
		{"a.xyz", "", models.FormatUnknown},
		{"a.xyz", "application/pdf", models.FormatPDF},
		{"upload", "text/markdown", models.FormatText},
		{"upload", "application/octet-stream", models.FormatUnknown},
		{"a.pdf", "text/plain", models.FormatPDF},
		{"", "", models.FormatUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.name, tt.mime); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.name, tt.mime, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeStrict {
		t.Errorf("empty: %s %v", m, err)
	}
	if m, err := ParseMode("Lenient"); err != nil || m != ModeLenient {
		t.Errorf("lenient: %s %v", m, err)
	}
	if _, err := ParseMode("sloppy"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
