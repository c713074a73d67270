package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flipscout/models"
)

// PostgresStore is an optional central sink for scored listings, used when
// DATABASE_URL is configured. SQLite remains the operational store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		price INTEGER NOT NULL,
		resale_estimate INTEGER NOT NULL,
		margin DOUBLE PRECISION NOT NULL,
		viable BOOLEAN NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		condition TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		scraped_at TIMESTAMPTZ NOT NULL,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id BIGSERIAL PRIMARY KEY,
		site_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		listings_found INTEGER NOT NULL DEFAULT 0,
		listings_new INTEGER NOT NULL DEFAULT 0,
		listings_viable INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_listings_viable ON listings(viable, margin DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_site ON listings(site_id, last_seen_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			id, fingerprint, site_id, title, price, resale_estimate, margin, viable,
			category, url, location, description, condition, status,
			scraped_at, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (fingerprint) DO UPDATE SET
			price = EXCLUDED.price,
			resale_estimate = EXCLUDED.resale_estimate,
			margin = EXCLUDED.margin,
			viable = EXCLUDED.viable,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), listings.description),
			condition = COALESCE(NULLIF(EXCLUDED.condition, ''), listings.condition),
			status = EXCLUDED.status,
			scraped_at = EXCLUDED.scraped_at,
			last_seen_at = EXCLUDED.last_seen_at`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.Fingerprint, l.SiteID, l.Title, l.Price, l.ResaleEstimate, l.Margin, l.Viable,
		l.Category, l.URL, l.Location, l.Description, l.Condition, l.Status,
		l.ScrapedAt, l.FirstSeenAt, l.LastSeenAt)
	return err
}

func (s *PostgresStore) CreateScanRun(ctx context.Context, run *models.ScanRun) error {
	query := `
		INSERT INTO scan_runs (site_id, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id`
	return s.pool.QueryRow(ctx, query, run.SiteID, run.StartedAt, run.Status).Scan(&run.ID)
}

func (s *PostgresStore) UpdateScanRun(ctx context.Context, run *models.ScanRun) error {
	query := `
		UPDATE scan_runs SET finished_at = $2, status = $3, listings_found = $4,
			listings_new = $5, listings_viable = $6, errors_count = $7
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, run.ID, run.FinishedAt, run.Status,
		run.ListingsFound, run.ListingsNew, run.ListingsViable, run.ErrorsCount)
	return err
}
