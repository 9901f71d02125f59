package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importlab/marketplace-scraper/internal/models"
)

// Store persists scraped product records in Postgres. Optional: the CLI runs
// without it, the API server uses it to keep batch history across restarts.
type Store struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS scraped_products (
	id         BIGSERIAL PRIMARY KEY,
	sku        TEXT NOT NULL,
	source_url TEXT NOT NULL,
	record     JSONB NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_scraped_products_source_url ON scraped_products (source_url);
`

func New(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// SaveRecord inserts one assembled record. The full record is stored as JSONB
// so CSV column changes never require a migration.
func (s *Store) SaveRecord(ctx context.Context, record models.ProductRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO scraped_products (sku, source_url, record)
		VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, query, record["SKU"], record["Original URL"], payload); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// SaveBatch stores every record of a finished run. A single failed insert
// aborts the batch write but never the scrape that produced it.
func (s *Store) SaveBatch(ctx context.Context, records []models.ProductRecord) error {
	for _, record := range records {
		if err := s.SaveRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// RecentRecords returns the newest records up to limit, newest first.
func (s *Store) RecentRecords(ctx context.Context, limit int) ([]models.ProductRecord, error) {
	query := `
		SELECT record FROM scraped_products
		ORDER BY scraped_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.ProductRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var record models.ProductRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
