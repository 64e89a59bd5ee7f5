package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/hyperjump/yomu/internal/models"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresBackend stores rows in a pgvector table and ranks them with the <=> cosine distance operator.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresBackend connects to dsn, ensures the vector extension and creates table if missing.
func NewPostgresBackend(ctx context.Context, dsn, table string, dimensions int) (*PostgresBackend, error) {
	if !identRe.MatchString(table) {
		return nil, models.Invalid("postgres_table", "must be a plain SQL identifier")
	}
	if dimensions <= 0 {
		return nil, models.Invalid("dimensions", "must be positive")
	}
	if err := ensureExtension(ctx, dsn); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	b := &PostgresBackend{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ DEFAULT now()
	)`, b.table, dimensions)
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

// ensureExtension runs before the pool exists because type registration needs the vector type.
func ensureExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Name() string { return BackendPostgres }

// Insert writes rows as one batch inside a transaction.
func (p *PostgresBackend) Insert(ctx context.Context, rows []models.Row) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(`INSERT INTO %s (document_id, content, embedding, metadata) VALUES ($1, $2, $3, $4)`, p.table)
	batch := &pgx.Batch{}
	for _, r := range rows {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(stmt, r.DocumentID, r.Content, pgvector.NewVector(r.Embedding), meta)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SimilaritySearch converts cosine distance to similarity as 1 - distance.
func (p *PostgresBackend) SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.SearchResult, error) {
	query := fmt.Sprintf(`
	SELECT document_id, content, metadata, 1 - (embedding <=> $1) AS similarity
	FROM %s
	WHERE 1 - (embedding <=> $1) >= $2
	ORDER BY embedding <=> $1, id
	LIMIT $3`, p.table)
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	results := make([]*models.SearchResult, 0)
	for rows.Next() {
		var (
			r    models.SearchResult
			meta []byte
		)
		if err := rows.Scan(&r.DocumentID, &r.Content, &meta, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (p *PostgresBackend) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table)).Scan(&n)
	return n, err
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
