package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", Invalid("file", "missing"), KindValidation},
		{"unsupported", &UnsupportedFormatError{Extension: "xyz"}, KindUnsupportedFormat},
		{"wrapped unsupported", fmt.Errorf("failed to extract: %w", &UnsupportedFormatError{Extension: "xyz"}), KindUnsupportedFormat},
		{"extraction", fmt.Errorf("%w: bad zip", ErrExtraction), KindExtraction},
		{"embedding", fmt.Errorf("failed to persist: %w", fmt.Errorf("%w: timeout", ErrEmbedding)), KindEmbedding},
		{"store", fmt.Errorf("%w: disk full", ErrStore), KindStore},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnsupportedFormatError_NamesExtension(t *testing.T) {
	err := &UnsupportedFormatError{Extension: "xyz"}
	if err.Error() != "unsupported file format for ingestion: xyz" {
		t.Errorf("unexpected message %q", err.Error())
	}
	var target *UnsupportedFormatError
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) || target.Extension != "xyz" {
		t.Error("errors.As should recover the extension")
	}
}

func TestChunkMetadata_Clone(t *testing.T) {
	page := 3
	m := ChunkMetadata{SourceID: "d1", PageNumber: &page, Extra: map[string]any{"k": "v"}}
	c := m.Clone()
	c.Extra["k"] = "changed"
	*c.PageNumber = 9
	if m.Extra["k"] != "v" {
		t.Error("clone shares Extra map")
	}
	if *m.PageNumber != 3 {
		t.Error("clone shares PageNumber")
	}
	w := m.WithPage(5)
	if *w.PageNumber != 5 || *m.PageNumber != 3 {
		t.Error("WithPage must not touch the receiver")
	}
}
