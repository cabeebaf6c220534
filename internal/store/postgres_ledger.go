package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const ledgerSchemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	hash TEXT PRIMARY KEY,
	size_bytes BIGINT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	ledger := &PostgresLedger{db: db}
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return ledger, nil
}

func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, ledgerSchemaSQL); err != nil {
		return fmt.Errorf("ensure images schema: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

func (l *PostgresLedger) Record(ctx context.Context, rec ImageRecord) error {
	_, err := l.db.ExecContext(
		ctx,
		`INSERT INTO images (hash, size_bytes, content_type, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hash) DO NOTHING`,
		rec.Hash,
		rec.SizeBytes,
		rec.ContentType,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert image record: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, hash string) (ImageRecord, bool, error) {
	row := l.db.QueryRowContext(
		ctx,
		`SELECT hash, size_bytes, content_type, created_at
		 FROM images
		 WHERE hash = $1`,
		hash,
	)

	var rec ImageRecord
	if err := row.Scan(&rec.Hash, &rec.SizeBytes, &rec.ContentType, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return ImageRecord{}, false, nil
		}
		return ImageRecord{}, false, fmt.Errorf("query image record: %w", err)
	}

	return rec, true, nil
}
