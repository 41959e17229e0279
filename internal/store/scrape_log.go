package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/prospect/dbopen"
)

// InsertScrapeLog records a render+extract attempt.
func (s *Store) InsertScrapeLog(ctx context.Context, entry *ScrapeLogEntry) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO scrape_log (id, place_id, url, status, email_count,
		error_message, duration_ms, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PlaceID, entry.URL, entry.Status, entry.EmailCount,
		entry.ErrorMessage, entry.DurationMs, entry.ScrapedAt,
	)
	return err
}

// ScrapeHistory returns scrape log entries for a place, newest first.
func (s *Store) ScrapeHistory(ctx context.Context, placeID string, limit int) ([]*ScrapeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, place_id, url, status, email_count,
		error_message, duration_ms, scraped_at
		FROM scrape_log WHERE place_id = ?
		ORDER BY scraped_at DESC LIMIT ?`, placeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScrapeLog(rows)
}

// RecentScrapeLog returns the latest scrape log entries across all places,
// newest first.
func (s *Store) RecentScrapeLog(ctx context.Context, limit int) ([]*ScrapeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, place_id, url, status, email_count,
		error_message, duration_ms, scraped_at
		FROM scrape_log ORDER BY scraped_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScrapeLog(rows)
}

func collectScrapeLog(rows *sql.Rows) ([]*ScrapeLogEntry, error) {
	var result []*ScrapeLogEntry
	for rows.Next() {
		var e ScrapeLogEntry
		if err := rows.Scan(&e.ID, &e.PlaceID, &e.URL, &e.Status, &e.EmailCount,
			&e.ErrorMessage, &e.DurationMs, &e.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan scrape log: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
