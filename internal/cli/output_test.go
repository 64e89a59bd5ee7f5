package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/yomu/internal/models"
)

func sampleResponse() *models.SearchResponse {
	page := 3
	return &models.SearchResponse{
		Query:     "revenue",
		QueryTime: 42,
		Total:     2,
		Results: []*models.SearchResult{
			{DocumentID: "doc-1", Content: "Revenue grew 12%.", Similarity: 0.91,
				Metadata: models.ChunkMetadata{SourceName: "report.pdf", PageNumber: &page}},
			{DocumentID: "doc-2", Content: strings.Repeat("x", 500), Similarity: 0.55,
				Metadata: models.ChunkMetadata{SourceName: "notes.txt"}},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "revenue" || decoded.Total != 2 || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Results[0].Metadata.PageNumber == nil || *decoded.Results[0].Metadata.PageNumber != 3 {
		t.Errorf("page number lost: %+v", decoded.Results[0].Metadata)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`Found 2 results for "revenue" in 42ms`,
		"#1  similarity 0.9100  document doc-1",
		"Source: report.pdf, page 3",
		"Source: notes.txt",
		strings.Repeat("x", 200) + "...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 201)) {
		t.Error("long content should be truncated")
	}
}

func TestWriteIngestResult(t *testing.T) {
	resp := models.IngestResponse{DocumentID: "doc-9", Filename: "a.txt", Content: "hello"}

	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, resp, 1, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Ingested a.txt as doc-9 (1 chunks)") {
		t.Errorf("unexpected text output: %s", buf.String())
	}

	buf.Reset()
	if err := WriteIngestResult(&buf, resp, 1, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.IngestResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != resp {
		t.Errorf("decoded = %+v, want %+v", decoded, resp)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
