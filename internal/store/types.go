package store

import "encoding/json"

// Sentinel values substituted when the places directory has no data for a
// field. The website sentinel doubles as the backlog exclusion marker: a
// record carrying it is never scraped.
const (
	NoName    = "No name available"
	NoAddress = "No address available"
	NoPhone   = "No phone number available"
	NoWebsite = "No website available"
)

// Business is the unit of persistence, keyed by the directory's stable
// place ID.
type Business struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone_number"`
	Website     string   `json:"website"`
	Emails      []string `json:"emails"`
	Rating      float64  `json:"rating"`
	RatingCount int      `json:"user_ratings_total"`
	Scraped     bool     `json:"scraped"`
	ScrapedAt   int64    `json:"scraped_at"` // ms epoch of the last extraction attempt
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// ScrapeLogEntry records one render+extract attempt (observability).
type ScrapeLogEntry struct {
	ID           string `json:"id"`
	PlaceID      string `json:"place_id"`
	URL          string `json:"url"`
	Status       string `json:"status"` // ok | empty | error
	EmailCount   int    `json:"email_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	ScrapedAt    int64  `json:"scraped_at"`
}

// encodeEmails serialises an email list for storage. The empty list encodes
// as "[]", which the merge rule treats as "nothing found, keep what we have".
func encodeEmails(emails []string) string {
	if len(emails) == 0 {
		return "[]"
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeEmails(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var emails []string
	if err := json.Unmarshal([]byte(raw), &emails); err != nil {
		return nil
	}
	return emails
}
