package models

import "maps"

// ChunkMetadata is the provenance record attached to every chunk.
type ChunkMetadata struct {
	SourceID     string         `json:"sourceId"`
	SourceName   string         `json:"sourceName"`
	PageNumber   *int           `json:"pageNumber,omitempty"`
	PageCount    int            `json:"pageCount,omitempty"`
	SectionTitle string         `json:"sectionTitle,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m ChunkMetadata) Clone() ChunkMetadata {
	out := m
	if m.PageNumber != nil {
		p := *m.PageNumber
		out.PageNumber = &p
	}
	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}
	return out
}

// WithPage returns a clone with PageNumber set to page.
func (m ChunkMetadata) WithPage(page int) ChunkMetadata {
	out := m.Clone()
	out.PageNumber = &page
	return out
}

// Chunk is one retrievable fragment of a document's text.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Index    int           `json:"index"`
}

// Row is a chunk paired with its embedding, as written to a vector store backend.
type Row struct {
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
}
