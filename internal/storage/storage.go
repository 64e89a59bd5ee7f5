// Package storage records ingested documents so they can be listed and fetched later.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/yomu/internal/models"
)

// ErrNotFound is returned by GetDocument when no document has the ID.
var ErrNotFound = errors.New("document not found")

// Storage is the document catalog. Documents are written once and never updated.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ListDocuments returns documents newest first.
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)
	Close() error
}
