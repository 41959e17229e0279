// Package prospect wires the lead discovery service: places directory client,
// headless website renderer, email extraction pipeline, SQLite store, and the
// chi HTTP surface.
package prospect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/prospect/internal/pipeline"
	"github.com/hazyhaar/prospect/internal/places"
	"github.com/hazyhaar/prospect/internal/render"
	"github.com/hazyhaar/prospect/internal/store"
)

// Service is the main orchestrator.
type Service struct {
	config   Config
	db       *sql.DB
	store    *store.Store
	places   *places.Client
	renderer pipeline.Renderer
	pipe     *pipeline.Pipeline
	logger   *slog.Logger
}

// Option customises Service construction.
type Option func(*Service)

// WithRenderer substitutes the website renderer. Tests inject fakes here.
func WithRenderer(r pipeline.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// New creates a Service on an open database. The schema is applied
// idempotently.
func New(db *sql.DB, cfg Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	svc := &Service{
		config: cfg,
		db:     db,
		store:  store.NewStore(db),
		places: places.New(cfg.Places, logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.renderer == nil {
		svc.renderer = render.New(cfg.Render, logger)
	}
	svc.pipe = pipeline.New(svc.places, svc.renderer, svc.store, cfg.Pipeline, logger)
	return svc, nil
}

// Start launches the renderer's browser when it has a lifecycle. Injected
// fake renderers typically do not.
func (s *Service) Start(ctx context.Context) error {
	if r, ok := s.renderer.(interface{ Start(context.Context) error }); ok {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("start renderer: %w", err)
		}
	}
	s.logger.Info("prospect: service started")
	return nil
}

// Close releases the renderer. The database is owned by the caller.
func (s *Service) Close() error {
	if r, ok := s.renderer.(interface{ Close() error }); ok {
		return r.Close()
	}
	return nil
}

// Discover runs one discovery request end to end and returns the assembled
// records.
func (s *Service) Discover(ctx context.Context, q Query) ([]*Business, error) {
	return s.pipe.Discover(ctx, q)
}

// ScrapeBacklog runs one bounded backlog pass and returns the number of
// records processed.
func (s *Service) ScrapeBacklog(ctx context.Context) (int, error) {
	return s.pipe.ScrapeBacklog(ctx)
}

// Businesses lists stored records, most recently updated first.
func (s *Service) Businesses(ctx context.Context, limit int) ([]*Business, error) {
	return s.store.List(ctx, limit)
}

// RecentScrapeLog lists the latest extraction attempts across all places.
func (s *Service) RecentScrapeLog(ctx context.Context, limit int) ([]*store.ScrapeLogEntry, error) {
	return s.store.RecentScrapeLog(ctx, limit)
}
