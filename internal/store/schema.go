package store

import "database/sql"

// Schema is the complete businesses schema.
const Schema = `
-- Discovered businesses, one row per directory place
CREATE TABLE IF NOT EXISTS businesses (
    place_id     TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT 'No name available',
    address      TEXT NOT NULL DEFAULT 'No address available',
    phone        TEXT NOT NULL DEFAULT 'No phone number available',
    website      TEXT NOT NULL DEFAULT 'No website available',
    emails       TEXT NOT NULL DEFAULT '[]',
    rating       REAL NOT NULL DEFAULT 0,
    rating_count INTEGER NOT NULL DEFAULT 0,
    scraped      INTEGER NOT NULL DEFAULT 0,
    scraped_at   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_businesses_backlog ON businesses(scraped, website);

-- Scrape log (observability): one row per render+extract attempt
CREATE TABLE IF NOT EXISTS scrape_log (
    id            TEXT PRIMARY KEY,
    place_id      TEXT NOT NULL,
    url           TEXT NOT NULL,
    status        TEXT NOT NULL,
    email_count   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    scraped_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scrape_log_place ON scrape_log(place_id, scraped_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
