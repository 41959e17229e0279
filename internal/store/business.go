package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/prospect/dbopen"
)

const businessColumns = `place_id, name, address, phone, website, emails,
	rating, rating_count, scraped, scraped_at, created_at, updated_at`

// Upsert writes a business keyed by place_id: insert if absent, merge if
// present. On merge every field is overwritten except emails, which is
// replaced only when the candidate list is non-empty, and scraped, which is
// sticky once true. scraped_at and updated_at are always refreshed. The rule
// is commutative and idempotent, so replaying a discovery or backlog pass
// never regresses previously captured emails.
func (s *Store) Upsert(ctx context.Context, b *Business) error {
	if b.PlaceID == "" {
		return fmt.Errorf("upsert: empty place_id")
	}
	now := time.Now().UnixMilli()
	if b.CreatedAt == 0 {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.ScrapedAt == 0 {
		// Defaults to record-creation time until an extraction attempt runs.
		b.ScrapedAt = b.CreatedAt
	}
	scraped := 0
	if b.Scraped {
		scraped = 1
	}

	// Discovery workers upsert concurrently; retry on SQLITE_BUSY.
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO businesses (`+businessColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			name         = excluded.name,
			address      = excluded.address,
			phone        = excluded.phone,
			website      = excluded.website,
			emails       = CASE WHEN excluded.emails <> '[]'
			                    THEN excluded.emails ELSE businesses.emails END,
			rating       = excluded.rating,
			rating_count = excluded.rating_count,
			scraped      = CASE WHEN excluded.scraped = 1
			                    THEN 1 ELSE businesses.scraped END,
			scraped_at   = excluded.scraped_at,
			updated_at   = excluded.updated_at`,
		b.PlaceID, b.Name, b.Address, b.Phone, b.Website, encodeEmails(b.Emails),
		b.Rating, b.RatingCount, scraped, b.ScrapedAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", b.PlaceID, err)
	}
	return nil
}

// UpdateScrapeResult is the backlog write path: scrape fields only. The
// record is always marked scraped, even when the extraction found nothing,
// so a permanently broken site is not requeued forever. Emails follow the
// same keep-if-empty rule as Upsert.
func (s *Store) UpdateScrapeResult(ctx context.Context, placeID string, emails []string, at time.Time) error {
	encoded := encodeEmails(emails)
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE businesses SET
			emails     = CASE WHEN ? <> '[]' THEN ? ELSE emails END,
			scraped    = 1,
			scraped_at = ?,
			updated_at = ?
		WHERE place_id = ?`,
		encoded, encoded, at.UnixMilli(), time.Now().UnixMilli(), placeID,
	)
	if err != nil {
		return fmt.Errorf("update scrape result %s: %w", placeID, err)
	}
	return nil
}

// Get retrieves a business by place ID. Returns nil when absent.
func (s *Store) Get(ctx context.Context, placeID string) (*Business, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE place_id = ?`, placeID)
	return scanBusiness(row)
}

// List returns stored businesses, most recently updated first.
func (s *Store) List(ctx context.Context, limit int) ([]*Business, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses
		ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

// Count returns the total number of stored businesses.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses`).Scan(&count)
	return count, err
}

// Backlog returns up to limit records that have a real website but no
// completed extraction attempt, oldest first.
func (s *Store) Backlog(ctx context.Context, limit int) ([]*Business, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses
		WHERE scraped = 0 AND website <> '' AND website <> ?
		ORDER BY created_at ASC LIMIT ?`,
		NoWebsite, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func collectBusinesses(rows *sql.Rows) ([]*Business, error) {
	var businesses []*Business
	for rows.Next() {
		b, err := scanBusinessRows(rows)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

func scanBusiness(row *sql.Row) (*Business, error) {
	var b Business
	var emails string
	var scraped int
	err := row.Scan(
		&b.PlaceID, &b.Name, &b.Address, &b.Phone, &b.Website, &emails,
		&b.Rating, &b.RatingCount, &scraped, &b.ScrapedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan business: %w", err)
	}
	b.Emails = decodeEmails(emails)
	b.Scraped = scraped != 0
	return &b, nil
}

func scanBusinessRows(rows *sql.Rows) (*Business, error) {
	var b Business
	var emails string
	var scraped int
	err := rows.Scan(
		&b.PlaceID, &b.Name, &b.Address, &b.Phone, &b.Website, &emails,
		&b.Rating, &b.RatingCount, &scraped, &b.ScrapedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan business: %w", err)
	}
	b.Emails = decodeEmails(emails)
	b.Scraped = scraped != 0
	return &b, nil
}
