package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"flipscout/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		price INTEGER,
		resale_estimate INTEGER,
		margin REAL,
		viable BOOLEAN,
		category TEXT,
		url TEXT,
		location TEXT,
		description TEXT DEFAULT '',
		condition TEXT DEFAULT '',
		status TEXT DEFAULT 'active',
		scraped_at DATETIME,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		run_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS listing_events (
		id INTEGER PRIMARY KEY,
		listing_id TEXT NOT NULL,
		event_type TEXT,
		price INTEGER,
		previous_price INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (listing_id) REFERENCES listings(id)
	);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER,
		listings_new INTEGER,
		listings_viable INTEGER,
		price_changes INTEGER,
		items_dropped INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS scan_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_listings INTEGER,
		total_viable INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS sessions (
		key TEXT PRIMARY KEY,
		blob BLOB,
		updated_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_fingerprint ON listings(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_listings_viable ON listings(viable, margin);
	CREATE INDEX IF NOT EXISTS idx_events_listing ON listing_events(listing_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scan_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scan_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const listingColumns = `id, fingerprint, site_id, title, price, resale_estimate, margin, viable,
		category, url, location, description, condition, status, scraped_at, first_seen_at, last_seen_at, run_id`

func scanListing(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var l models.Listing
	var id string
	err := row.Scan(&id, &l.Fingerprint, &l.SiteID, &l.Title, &l.Price, &l.ResaleEstimate,
		&l.Margin, &l.Viable, &l.Category, &l.URL, &l.Location, &l.Description, &l.Condition,
		&l.Status, &l.ScrapedAt, &l.FirstSeenAt, &l.LastSeenAt, &l.RunID)
	if err != nil {
		return nil, err
	}
	if parsed, err := uuid.Parse(id); err == nil {
		l.ID = parsed
	}
	return &l, nil
}

func (s *SQLiteStore) GetListingByFingerprint(fingerprint string) (*models.Listing, error) {
	row := s.db.QueryRow(`SELECT `+listingColumns+` FROM listings WHERE fingerprint = ?`, fingerprint)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) GetListingByID(id string) (*models.Listing, error) {
	row := s.db.QueryRow(`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) UpsertListing(l *models.Listing) error {
	_, err := s.db.Exec(`
		INSERT INTO listings (id, fingerprint, site_id, title, price, resale_estimate, margin, viable,
			category, url, location, description, condition, status, scraped_at, first_seen_at, last_seen_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			price = excluded.price,
			resale_estimate = excluded.resale_estimate,
			margin = excluded.margin,
			viable = excluded.viable,
			scraped_at = excluded.scraped_at,
			last_seen_at = excluded.last_seen_at,
			status = 'active',
			run_id = excluded.run_id`,
		l.ID.String(), l.Fingerprint, l.SiteID, l.Title, l.Price, l.ResaleEstimate, l.Margin, l.Viable,
		l.Category, l.URL, l.Location, l.Description, l.Condition, l.Status, l.ScrapedAt,
		l.FirstSeenAt, l.LastSeenAt, l.RunID)
	return err
}

func (s *SQLiteStore) SetEnrichment(id, description, condition string) error {
	_, err := s.db.Exec(`UPDATE listings SET description = ?, condition = ? WHERE id = ?`,
		description, condition, id)
	return err
}

func (s *SQLiteStore) TouchListing(id string, t time.Time) error {
	_, err := s.db.Exec(`UPDATE listings SET last_seen_at = ? WHERE id = ?`, t, id)
	return err
}

func (s *SQLiteStore) MarkListingRemoved(id string) error {
	_, err := s.db.Exec(`UPDATE listings SET status = ? WHERE id = ?`, models.ListingStatusRemoved, id)
	return err
}

// GetViableUnenriched returns viable listings that still lack a description,
// oldest first.
func (s *SQLiteStore) GetViableUnenriched(limit int) ([]models.Listing, error) {
	return s.queryListings(`
		SELECT `+listingColumns+` FROM listings
		WHERE viable = TRUE AND status = 'active' AND description = ''
		ORDER BY scraped_at ASC LIMIT ?`, limit)
}

// GetStaleActive returns active listings not seen for the given duration.
func (s *SQLiteStore) GetStaleActive(olderThan time.Duration, limit int) ([]models.Listing, error) {
	cutoff := time.Now().Add(-olderThan)
	return s.queryListings(`
		SELECT `+listingColumns+` FROM listings
		WHERE status = 'active' AND last_seen_at < ?
		ORDER BY last_seen_at ASC LIMIT ?`, cutoff, limit)
}

func (s *SQLiteStore) GetViableListings(limit int) ([]models.Listing, error) {
	return s.queryListings(`
		SELECT `+listingColumns+` FROM listings
		WHERE viable = TRUE AND status = 'active'
		ORDER BY margin DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryListings(query string, args ...any) ([]models.Listing, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) CreateEvent(ev *models.ListingEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO listing_events (listing_id, event_type, price, previous_price, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ListingID.String(), ev.EventType, ev.Price, ev.PreviousPrice, time.Now())
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScanRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scan_runs (site_id, started_at, status, listings_found, listings_new,
			listings_viable, price_changes, items_dropped, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0, 0)`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScanRun) error {
	_, err := s.db.Exec(`
		UPDATE scan_runs SET finished_at = ?, status = ?, listings_found = ?, listings_new = ?,
			listings_viable = ?, price_changes = ?, items_dropped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew,
		run.ListingsViable, run.PriceChanges, run.ItemsDropped, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scan_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_listings,
			total_viable, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scan_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scan_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM listings WHERE site_id = ?),
			(SELECT COUNT(*) FROM listings WHERE site_id = ? AND viable = TRUE),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scan_runs WHERE site_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scan_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_listings = excluded.total_listings,
			total_viable = excluded.total_viable,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = []byte(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) EnqueueCommand(cmdType models.CommandType, params *models.CommandParams) error {
	var raw []byte
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmdType, raw, time.Now())
	return err
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, err
	}
	return params, nil
}

// SQLiteSessionStore persists browser session blobs in the sessions table.
type SQLiteSessionStore struct {
	db *sql.DB
}

func NewSQLiteSessionStore(store *SQLiteStore) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: store.db}
}

func (s *SQLiteSessionStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM sessions WHERE key = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *SQLiteSessionStore) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		key, blob, time.Now())
	return err
}
