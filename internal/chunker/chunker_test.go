package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/yomu/internal/models"
)

func meta() models.ChunkMetadata {
	return models.ChunkMetadata{SourceID: "doc-1", SourceName: "a.txt", Extra: map[string]any{"k": "v"}}
}

// alphabet returns n characters with no newlines or periods.
func alphabet(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

func TestChunk_EmptyAndWhitespace(t *testing.T) {
	c := Default()
	for _, text := range []string{"", "   \n\t  ", "\r\n\r\n"} {
		if chunks := c.Chunk(text, meta()); len(chunks) != 0 {
			t.Errorf("Chunk(%q) = %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestChunk_ShortText(t *testing.T) {
	chunks := Default().Chunk("  hello world.  ", meta())
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Content != "hello world." {
		t.Errorf("content = %q", chunks[0].Content)
	}
	if chunks[0].Metadata.SourceID != "doc-1" || chunks[0].Metadata.SourceName != "a.txt" {
		t.Errorf("metadata not carried: %+v", chunks[0].Metadata)
	}
	if chunks[0].Metadata.PageNumber != nil {
		t.Error("text without page markers should have no page number")
	}
}

func TestChunk_NoBreaks2500(t *testing.T) {
	text := alphabet(2500)
	chunks := Default().Chunk(text, meta())
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > DefaultSize {
			t.Errorf("chunk %d has %d chars", i, n)
		}
		if ch.Index != i {
			t.Errorf("chunk %d index = %d", i, ch.Index)
		}
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev := chunks[i].Content
		shared := prev[len(prev)-DefaultOverlap:]
		if !strings.HasPrefix(chunks[i+1].Content, shared) {
			t.Errorf("chunks %d and %d do not share %d chars", i, i+1, DefaultOverlap)
		}
	}
	if !strings.HasSuffix(text, chunks[2].Content) {
		t.Error("last chunk should end at the end of the text")
	}
}

func TestChunk_MultiByte(t *testing.T) {
	text := strings.Repeat("é", 2500)
	chunks := Default().Chunk(text, meta())
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if !utf8.ValidString(ch.Content) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(ch.Content); n > DefaultSize {
			t.Errorf("chunk %d has %d chars", i, n)
		}
	}
}

func TestChunk_PrefersNewlineInTail(t *testing.T) {
	text := alphabet(900) + "\n" + alphabet(600)
	chunks := Default().Chunk(text, meta())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Content != alphabet(900) {
		t.Errorf("first chunk should end at the newline, got %d chars", len(chunks[0].Content))
	}
}

func TestChunk_PrefersSentenceEndInTail(t *testing.T) {
	text := alphabet(850) + ". " + alphabet(700)
	chunks := Default().Chunk(text, meta())
	if !strings.HasSuffix(chunks[0].Content, ".") {
		t.Errorf("first chunk should end after the period: %q", chunks[0].Content[len(chunks[0].Content)-5:])
	}
	if len(chunks[0].Content) != 851 {
		t.Errorf("first chunk len = %d, want 851", len(chunks[0].Content))
	}
}

func TestChunk_IgnoresBreakBeforeTail(t *testing.T) {
	text := alphabet(500) + "\n" + alphabet(1500)
	chunks := Default().Chunk(text, meta())
	if n := utf8.RuneCountInString(chunks[0].Content); n != DefaultSize {
		t.Errorf("break outside the tail must be ignored, first chunk has %d chars", n)
	}
}

func TestChunk_CoversAllText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about topic %d. ", i, i%7)
		if i%11 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()
	for _, tc := range []struct{ size, overlap int }{{1000, 200}, {300, 50}, {120, 0}, {50, 49}} {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.overlap), func(t *testing.T) {
			c, err := New(tc.size, tc.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks := c.Chunk(text, meta())
			covered := make([]bool, len(text))
			from := 0
			for i, ch := range chunks {
				idx := strings.Index(text[from:], ch.Content)
				if idx < 0 {
					t.Fatalf("chunk %d not found in order", i)
				}
				pos := from + idx
				for j := pos; j < pos+len(ch.Content); j++ {
					covered[j] = true
				}
				from = pos
			}
			for i, ok := range covered {
				if !ok && text[i] != ' ' && text[i] != '\n' {
					t.Fatalf("character %d (%q) not covered by any chunk", i, text[i])
				}
			}
		})
	}
}

func TestChunk_MetadataIsCopiedPerChunk(t *testing.T) {
	m := meta()
	chunks := Default().Chunk(alphabet(2500), m)
	chunks[0].Metadata.Extra["k"] = "changed"
	chunks[0].Metadata.SectionTitle = "x"
	if chunks[1].Metadata.Extra["k"] != "v" || chunks[1].Metadata.SectionTitle != "" {
		t.Error("mutating one chunk's metadata affected another")
	}
	if m.Extra["k"] != "v" {
		t.Error("mutating a chunk's metadata affected the input")
	}
}

func TestChunk_PageMarkers(t *testing.T) {
	text := "[PAGE_1]\n" + strings.Repeat("a", 600) + "\n[PAGE_2]\n" + strings.Repeat("b", 600)
	chunks := Default().Chunk(text, meta())
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i, want := range []int{1, 2} {
		if chunks[i].Metadata.PageNumber == nil || *chunks[i].Metadata.PageNumber != want {
			t.Errorf("chunk %d page = %v, want %d", i, chunks[i].Metadata.PageNumber, want)
		}
		if strings.Contains(chunks[i].Content, "[PAGE_") {
			t.Errorf("chunk %d still contains a marker", i)
		}
	}
}

func TestChunk_PageMarkerAtChunkStart(t *testing.T) {
	c, err := New(100, 0)
	if err != nil {
		t.Fatal(err)
	}
	text := "[PAGE_4]\n" + alphabet(99) + "\n[PAGE_5]\n" + alphabet(50)
	chunks := c.Chunk(text, meta())
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if p := chunks[1].Metadata.PageNumber; p == nil || *p != 5 {
		t.Errorf("second chunk page = %v, want 5", p)
	}
}

func TestChunk_SmallOverlapGapStillTerminates(t *testing.T) {
	c, err := New(10, 9)
	if err != nil {
		t.Fatal(err)
	}
	text := "aaaaaaaa\nbbbbbbbbbbbbbbbbbbbb"
	chunks := c.Chunk(text, meta())
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1].Content) {
		t.Error("last chunk should reach the end of the text")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		size, overlap int
		field         string
	}{
		{100, 100, "chunk_size"},
		{100, 200, "chunk_size"},
		{0, 0, "chunk_size"},
		{100, -1, "chunk_overlap"},
	}
	for _, tt := range tests {
		_, err := New(tt.size, tt.overlap)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("New(%d, %d) error = %v, want ValidationError", tt.size, tt.overlap, err)
			continue
		}
		if verr.Field != tt.field {
			t.Errorf("New(%d, %d) field = %q, want %q", tt.size, tt.overlap, verr.Field, tt.field)
		}
	}
	if _, err := New(100, 0); err != nil {
		t.Errorf("zero overlap is valid: %v", err)
	}
}
