// Package vectorstore persists embedded chunks and answers similarity queries.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/hyperjump/yomu/internal/models"
)

// Backend stores rows and ranks them against a query embedding.
type Backend interface {
	// Insert writes all rows or none of them.
	Insert(ctx context.Context, rows []models.Row) error
	// SimilaritySearch returns rows with similarity >= threshold, most similar first, at most limit.
	SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.SearchResult, error)
	Count(ctx context.Context) (int64, error)
	Name() string
	Close() error
}

// checkRows rejects the batch if any embedding does not have dimensions entries.
// dimensions of 0 accepts any length.
func checkRows(rows []models.Row, dimensions int) error {
	if dimensions <= 0 {
		return nil
	}
	for i, r := range rows {
		if len(r.Embedding) != dimensions {
			return fmt.Errorf("row %d: vector dimension mismatch: got %d, expected %d", i, len(r.Embedding), dimensions)
		}
	}
	return nil
}

func checkQuery(embedding []float32, dimensions int) error {
	if dimensions > 0 && len(embedding) != dimensions {
		return fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), dimensions)
	}
	return nil
}

// Backend names accepted by OpenBackend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)
