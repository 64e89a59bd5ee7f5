package models

// SearchResult is a stored chunk with its similarity to a query. Higher is more relevant.
type SearchResult struct {
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string          `json:"query"`
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}

// IngestResponse is returned to clients after a successful ingestion.
type IngestResponse struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
}

// ErrorResponse is the error body of the HTTP surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
