// Package render obtains fully-rendered HTML for business websites.
//
// Emails are frequently injected by client-side scripts, so a plain HTTP
// fetch is not enough: each call opens a stealth tab in a shared headless
// Chrome, waits for the page's network activity to settle, and serialises
// the final DOM. The tab is released on every exit path; leaking tabs under
// repeated failures is the one thing this package must never do.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Config configures the renderer.
type Config struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome.
	Remote string `yaml:"remote"`
	// Timeout bounds one navigation, settle wait included. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// SettleWait is the quiet window the page must hold before the DOM is
	// read (the "mostly idle" heuristic). Default: 1s.
	SettleWait time.Duration `yaml:"settle_wait"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SettleWait <= 0 {
		c.SettleWait = time.Second
	}
}

// Renderer owns one Chrome instance and opens a scoped tab per call.
type Renderer struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New creates a Renderer. Call Start before HTML.
func New(cfg Config, logger *slog.Logger) *Renderer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Start launches Chrome (or connects to a remote instance).
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("render: renderer is closed")
	}
	if r.browser != nil {
		return nil
	}

	wsURL := r.cfg.Remote
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("render: launch: %w", err)
		}
		r.lnch = l
		wsURL = u
		r.logger.Info("render: launched local chrome", "url", wsURL)
	} else {
		r.logger.Info("render: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("render: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		r.logger.Warn("render: ignore cert errors failed", "error", err)
	}

	r.browser = b
	return nil
}

// Close shuts Chrome down.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}

// HTML navigates a fresh stealth tab to url and returns the rendered
// document once network activity has settled. The tab is closed before
// returning, whatever happens. A navigation or timeout error is returned to
// the caller, which treats it as "no content".
func (r *Renderer) HTML(ctx context.Context, url string) (string, error) {
	r.mu.Lock()
	b := r.browser
	r.mu.Unlock()
	if b == nil {
		return "", fmt.Errorf("render: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("render: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("render: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("render: wait load %s: %w", url, err)
	}
	// Best effort: scripts that keep polling forever would otherwise hold
	// the page "unstable" until the navigation deadline.
	if err := p.WaitStable(r.cfg.SettleWait); err != nil {
		r.logger.Debug("render: settle wait ended early", "url", url, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("render: read dom %s: %w", url, err)
	}
	return html, nil
}
