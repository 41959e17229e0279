// Package pipeline orchestrates the discover → enrich → scrape → upsert
// workflow, and the backlog pass over records still lacking an extraction
// attempt.
//
// Per-item failures (detail fetch, render, extraction) are swallowed at the
// item boundary and never escape the batch loop; only request-level setup
// failures propagate to the caller.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/prospect/idgen"
	"github.com/hazyhaar/prospect/internal/extract"
	"github.com/hazyhaar/prospect/internal/places"
	"github.com/hazyhaar/prospect/internal/store"
)

// Renderer obtains rendered HTML for a website. Implemented by
// internal/render; faked in tests.
type Renderer interface {
	HTML(ctx context.Context, url string) (string, error)
}

// Config configures the pipeline.
type Config struct {
	// Workers bounds concurrent per-place enrichment+scrape operations in
	// one discovery request. Default: 4.
	Workers int `yaml:"workers"`
	// BacklogLimit bounds one backlog pass. Default: 10.
	BacklogLimit int `yaml:"backlog_limit"`
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BacklogLimit <= 0 {
		c.BacklogLimit = 10
	}
}

// Pipeline drives discovery requests and backlog passes.
type Pipeline struct {
	places *places.Client
	render Renderer
	store  *store.Store
	logger *slog.Logger
	config Config
	newID  idgen.Generator
}

// New creates a Pipeline.
func New(pc *places.Client, r Renderer, s *store.Store, cfg Config, logger *slog.Logger) *Pipeline {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		places: pc,
		render: r,
		store:  s,
		logger: logger,
		config: cfg,
		newID:  idgen.Prefixed("scr_", idgen.Default),
	}
}

// Discover runs one discovery request: page through search results, enrich
// each place, scrape each real website, upsert each record. Returns all
// assembled records regardless of individual item failures; only an
// initial-search failure is fatal.
//
// Per-place work fans out over a fixed worker pool so a large result set
// cannot exhaust rendering sessions or trip directory rate limits.
func (p *Pipeline) Discover(ctx context.Context, q places.Query) ([]*store.Business, error) {
	summaries, err := p.places.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	workers := p.config.Workers
	if workers > len(summaries) {
		workers = len(summaries)
	}

	// Indexed result slots keep output order aligned with search order
	// without cross-worker coordination.
	results := make([]*store.Business, len(summaries))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.processPlace(ctx, summaries[idx])
			}
		}()
	}
	for i := range summaries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	assembled := make([]*store.Business, 0, len(summaries))
	for _, b := range results {
		if b != nil {
			assembled = append(assembled, b)
		}
	}
	p.logger.Info("pipeline: discovery done",
		"found", len(summaries), "assembled", len(assembled),
		"type", q.Type, "location", q.Location)
	return assembled, nil
}

// processPlace enriches one place and scrapes its website. A detail-fetch
// failure skips the place; a scrape failure keeps the record with empty
// emails. Returns nil when the place yielded no record.
func (p *Pipeline) processPlace(ctx context.Context, sum places.Summary) *store.Business {
	log := p.logger.With("place_id", sum.PlaceID)

	d, err := p.places.Details(ctx, sum.PlaceID)
	if err != nil {
		log.Warn("pipeline: detail fetch failed, skipping place", "error", err)
		return nil
	}

	b := &store.Business{
		PlaceID:     d.PlaceID,
		Name:        d.Name,
		Address:     d.Address,
		Phone:       d.Phone,
		Website:     d.Website,
		Rating:      d.Rating,
		RatingCount: d.RatingCount,
	}
	if d.HasWebsite() {
		b.Emails = p.scrape(ctx, d.PlaceID, d.Website)
		b.Scraped = true
		b.ScrapedAt = time.Now().UnixMilli()
	}

	if err := p.store.Upsert(ctx, b); err != nil {
		log.Warn("pipeline: upsert failed", "error", err)
	}
	return b
}

// ScrapeBacklog processes up to BacklogLimit stored records that have a
// real website but no completed extraction attempt. Strictly sequential:
// one rendering session at a time. Every item is marked scraped with
// whatever emails were found, so a permanently broken site is not requeued
// forever. Returns the number of records processed.
func (p *Pipeline) ScrapeBacklog(ctx context.Context) (int, error) {
	backlog, err := p.store.Backlog(ctx, p.config.BacklogLimit)
	if err != nil {
		return 0, fmt.Errorf("backlog: %w", err)
	}

	processed := 0
	for _, b := range backlog {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		emails := p.scrape(ctx, b.PlaceID, b.Website)
		if err := p.store.UpdateScrapeResult(ctx, b.PlaceID, emails, time.Now()); err != nil {
			p.logger.Warn("pipeline: mark scraped failed", "place_id", b.PlaceID, "error", err)
			continue
		}
		processed++
		p.logger.Info("pipeline: backlog item processed",
			"place_id", b.PlaceID, "name", b.Name, "emails", len(emails))
	}
	p.logger.Info("pipeline: backlog pass done", "eligible", len(backlog), "processed", processed)
	return processed, nil
}

// scrape renders a website and extracts emails, logging the attempt. A dead
// or slow site yields an empty result rather than an error.
func (p *Pipeline) scrape(ctx context.Context, placeID, url string) []string {
	start := time.Now()
	entry := &store.ScrapeLogEntry{
		ID:        p.newID(),
		PlaceID:   placeID,
		URL:       url,
		ScrapedAt: start.UnixMilli(),
	}

	var emails []string
	html, err := p.render.HTML(ctx, url)
	if err != nil {
		entry.Status = "error"
		entry.ErrorMessage = err.Error()
		p.logger.Warn("pipeline: render failed", "place_id", placeID, "url", url, "error", err)
	} else {
		emails = extract.Emails(html)
		entry.EmailCount = len(emails)
		entry.Status = "ok"
		if len(emails) == 0 {
			entry.Status = "empty"
		}
	}
	entry.DurationMs = time.Since(start).Milliseconds()

	if err := p.store.InsertScrapeLog(ctx, entry); err != nil {
		p.logger.Warn("pipeline: scrape log write failed", "place_id", placeID, "error", err)
	}
	return emails
}
