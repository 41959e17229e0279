package render

import (
	"context"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout)
	}
	if cfg.SettleWait != time.Second {
		t.Errorf("settle wait: got %v", cfg.SettleWait)
	}
}

func TestHTMLBeforeStart(t *testing.T) {
	// WHAT: Calling HTML before Start fails cleanly instead of panicking.
	r := New(Config{}, nil)
	if _, err := r.HTML(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestStartAfterClose(t *testing.T) {
	r := New(Config{}, nil)
	r.Close()
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a closed renderer")
	}
}
