package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// sectionRecord is one stored row in the Badger backend.
type sectionRecord struct {
	ID         uint64 `badgerhold:"key"`
	DocumentID string `badgerholdIndex:"DocumentID"`
	Content    string
	Embedding  []float32
	Metadata   models.ChunkMetadata
	CreatedAt  time.Time
}

// BadgerBackend stores rows in an embedded Badger database and ranks them by scanning.
type BadgerBackend struct {
	store      *badgerhold.Store
	dimensions int
}

// NewBadgerBackend opens or creates a Badger database in dir.
// Rows and queries must have dimensions entries; 0 accepts any length.
func NewBadgerBackend(dir string, dimensions int) (*BadgerBackend, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerBackend{store: store, dimensions: dimensions}, nil
}

func (b *BadgerBackend) Name() string { return BackendBadger }

// Insert writes rows in one Badger transaction. A dimension mismatch rejects the whole batch.
func (b *BadgerBackend) Insert(ctx context.Context, rows []models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRows(rows, b.dimensions); err != nil {
		return err
	}
	tx := b.store.Badger().NewTransaction(true)
	defer tx.Discard()

	now := time.Now().UTC()
	for i, r := range rows {
		rec := &sectionRecord{
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Embedding:  r.Embedding,
			Metadata:   r.Metadata,
			CreatedAt:  now,
		}
		if err := b.store.TxInsert(tx, badgerhold.NextSequence(), rec); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SimilaritySearch loads every record and scores it in process.
func (b *BadgerBackend) SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkQuery(embedding, b.dimensions); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	var records []sectionRecord
	if err := b.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to scan sections: %w", err)
	}
	results := make([]*models.SearchResult, 0)
	for _, rec := range records {
		sim := utils.Cosine(embedding, rec.Embedding)
		if sim < threshold {
			continue
		}
		results = append(results, &models.SearchResult{
			DocumentID: rec.DocumentID,
			Content:    rec.Content,
			Metadata:   rec.Metadata,
			Similarity: sim,
		})
	}
	slices.SortStableFunc(results, func(x, y *models.SearchResult) int {
		return cmp.Compare(y.Similarity, x.Similarity)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (b *BadgerBackend) Count(ctx context.Context) (int64, error) {
	n, err := b.store.Count(&sectionRecord{}, nil)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (b *BadgerBackend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
