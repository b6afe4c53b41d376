package feedback

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists review decisions in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a connection and makes sure the reviewed_spans table
// exists
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feedback store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping feedback store: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresFromDB wraps an existing connection, for callers that manage
// their own pool. The reviewed_spans table is assumed to exist.
func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS reviewed_spans (
			id UUID PRIMARY KEY,
			document TEXT NOT NULL,
			label TEXT NOT NULL,
			value TEXT NOT NULL,
			span_start INTEGER NOT NULL,
			span_end INTEGER NOT NULL,
			line_number INTEGER NOT NULL,
			source TEXT NOT NULL,
			decision TEXT NOT NULL,
			reviewed_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create reviewed_spans table: %w", err)
	}
	return nil
}

// Save inserts records in one transaction so a partial batch never lands.
// Replayed record ids are ignored.
func (s *PostgresStore) Save(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feedback insert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reviewed_spans (
			id, document, label, value, span_start, span_end,
			line_number, source, decision, reviewed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare feedback insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.ID,
			record.Document,
			record.Label,
			record.Value,
			record.Start,
			record.End,
			record.LineNumber,
			record.Source,
			record.Decision,
			record.ReviewedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reviewed span: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feedback insert: %w", err)
	}
	return nil
}

// ListByDocument returns decisions for one document, newest first
func (s *PostgresStore) ListByDocument(ctx context.Context, document string) ([]Record, error) {
	query := `
		SELECT id, document, label, value, span_start, span_end,
			   line_number, source, decision, reviewed_at
		FROM reviewed_spans
		WHERE document = $1
		ORDER BY reviewed_at DESC, span_start ASC
	`
	rows, err := s.db.QueryContext(ctx, query, document)
	if err != nil {
		return nil, fmt.Errorf("query reviewed spans: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans multiple rows into a Record slice
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var record Record
		err := rows.Scan(
			&record.ID,
			&record.Document,
			&record.Label,
			&record.Value,
			&record.Start,
			&record.End,
			&record.LineNumber,
			&record.Source,
			&record.Decision,
			&record.ReviewedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reviewed span: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviewed spans: %w", err)
	}

	return records, nil
}
