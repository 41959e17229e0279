// Package places implements the client for the external places directory:
// paginated nearby search and per-place detail enrichment.
//
// Responses are parsed into typed structs at this boundary; absent detail
// fields get sentinel defaults, and non-OK API statuses are errors rather
// than silently empty results.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/prospect/internal/store"
)

// Config configures the directory client.
type Config struct {
	// BaseURL of the places API. Default: the Google Places web service.
	BaseURL string `yaml:"base_url"`
	// APIKey sent with every request.
	APIKey string `yaml:"api_key"`
	// Timeout per HTTP call. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// PageDelay is the mandatory wait before a continuation token may be
	// used; the API rejects a token reused too soon. Default: 2s.
	PageDelay time.Duration `yaml:"page_delay"`
	// MaxPages caps search pagination regardless of remaining results.
	// Default: 3.
	MaxPages int `yaml:"max_pages"`
	// UserAgent sent with requests.
	UserAgent string `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://maps.googleapis.com/maps/api/place"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 2 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.UserAgent == "" {
		c.UserAgent = "prospect/1.0"
	}
}

// Query describes one discovery request.
type Query struct {
	Type     string // business category
	Radius   string // search radius, directory-defined units
	Location string // "lat,lng"
}

// Summary is the minimal per-place result of a search page.
type Summary struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
}

// Details holds the enriched contact fields for one place. Absent fields
// carry the store sentinels.
type Details struct {
	PlaceID     string
	Name        string
	Address     string
	Phone       string
	Website     string
	Rating      float64
	RatingCount int
}

// HasWebsite reports whether the place has a real website to scrape.
func (d *Details) HasWebsite() bool {
	return d.Website != "" && d.Website != store.NoWebsite
}

// Client calls the places directory API.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

type searchResponse struct {
	Results       []Summary `json:"results"`
	NextPageToken string    `json:"next_page_token"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message"`
}

// Search pages through nearby-search results for the query. Pagination
// follows continuation tokens after the mandatory delay, and stops when no
// token is returned or MaxPages is reached. A failure on the initial page is
// fatal; a failure on a follow-up page stops pagination with whatever has
// been collected so far.
func (c *Client) Search(ctx context.Context, q Query) ([]Summary, error) {
	var all []Summary
	token := ""

	for page := 0; page < c.config.MaxPages; page++ {
		if page > 0 {
			// The token is not valid until the delay has elapsed.
			if err := sleepCtx(ctx, c.config.PageDelay); err != nil {
				return all, err
			}
		}

		resp, err := c.searchPage(ctx, q, token)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("search: %w", err)
			}
			c.logger.Warn("places: follow-up page failed, keeping partial results",
				"page", page+1, "collected", len(all), "error", err)
			return all, nil
		}

		all = append(all, resp.Results...)
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	return all, nil
}

func (c *Client) searchPage(ctx context.Context, q Query, token string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("location", q.Location)
	params.Set("radius", q.Radius)
	params.Set("type", q.Type)
	params.Set("key", c.config.APIKey)
	if token != "" {
		params.Set("pagetoken", token)
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.config.BaseURL+"/nearbysearch/json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, apiError(resp.Status, resp.ErrorMessage)
	}
	return &resp, nil
}

type detailsResponse struct {
	Result struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		FormattedPhone   string  `json:"formatted_phone_number"`
		Website          string  `json:"website"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// detailFields is the field mask requested from the details endpoint.
const detailFields = "name,formatted_address,formatted_phone_number,website,rating,user_ratings_total"

// Details fetches the contact fields for one place. Any absent field is
// substituted with its sentinel default. Transport and API errors propagate
// to the caller, which decides whether to skip the item or abort the batch.
func (c *Client) Details(ctx context.Context, placeID string) (*Details, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailFields)
	params.Set("key", c.config.APIKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, c.config.BaseURL+"/details/json?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("details %s: %w", placeID, err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("details %s: %w", placeID, apiError(resp.Status, resp.ErrorMessage))
	}

	d := &Details{
		PlaceID:     placeID,
		Name:        resp.Result.Name,
		Address:     resp.Result.FormattedAddress,
		Phone:       resp.Result.FormattedPhone,
		Website:     resp.Result.Website,
		Rating:      resp.Result.Rating,
		RatingCount: resp.Result.UserRatingsTotal,
	}
	if d.Name == "" {
		d.Name = store.NoName
	}
	if d.Address == "" {
		d.Address = store.NoAddress
	}
	if d.Phone == "" {
		d.Phone = store.NoPhone
	}
	if d.Website == "" {
		d.Website = store.NoWebsite
	}
	return d, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

func apiError(status, message string) error {
	if message != "" {
		return fmt.Errorf("api status %s: %s", status, message)
	}
	return fmt.Errorf("api status %s", status)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
