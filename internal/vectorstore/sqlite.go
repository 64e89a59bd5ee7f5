package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// sqliteDriver is mattn/go-sqlite3 with a cosine_similarity(blob, blob) SQL function.
const sqliteDriver = "sqlite3_yomu"

var registerDriver sync.Once

func registerSQLiteDriver() {
	registerDriver.Do(func() {
		sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("cosine_similarity", cosineBlob, true)
			},
		})
	})
}

func cosineBlob(a, b []byte) float64 {
	return utils.Cosine(bytesToFloat32Slice(a), bytesToFloat32Slice(b))
}

// SQLiteBackend stores rows in a document_sections table and ranks them inside SQLite.
type SQLiteBackend struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteBackend opens or creates the database at dbPath. Parent directories are created.
// Rows and queries must have dimensions entries; 0 accepts any length.
func NewSQLiteBackend(dbPath string, dimensions int) (*SQLiteBackend, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	registerSQLiteDriver()
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(sqliteDriver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSectionsSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteBackend{db: db, dimensions: dimensions}, nil
}

func initSectionsSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS document_sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sections_document_id ON document_sections(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteBackend) Name() string { return BackendSQLite }

// Insert writes rows in a single transaction. A dimension mismatch rejects the whole batch.
func (s *SQLiteBackend) Insert(ctx context.Context, rows []models.Row) error {
	if err := checkRows(rows, s.dimensions); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_sections (document_id, content, embedding, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.DocumentID, r.Content, float32SliceToBytes(r.Embedding), string(meta)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SimilaritySearch ranks rows with the registered cosine_similarity function.
func (s *SQLiteBackend) SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.SearchResult, error) {
	if err := checkQuery(embedding, s.dimensions); err != nil {
		return nil, err
	}
	query := `
	SELECT document_id, content, metadata, similarity FROM (
		SELECT id, document_id, content, metadata, cosine_similarity(embedding, ?) AS similarity
		FROM document_sections
	)
	WHERE similarity >= ?
	ORDER BY similarity DESC, id ASC
	LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, float32SliceToBytes(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	results := make([]*models.SearchResult, 0)
	for rows.Next() {
		var (
			r    models.SearchResult
			meta sql.NullString
		)
		if err := rows.Scan(&r.DocumentID, &r.Content, &meta, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *SQLiteBackend) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_sections").Scan(&n)
	return n, err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
