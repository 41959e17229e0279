package prospect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/prospect/internal/places"
)

// Routes returns the HTTP API handler.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/businesses", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 100)
		list, err := s.Businesses(r.Context(), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if list == nil {
			list = []*Business{}
		}
		writeJSON(w, 200, map[string]any{"businesses": list})
	})

	r.Get("/api/businesses/search", s.handleSearch)

	// GET kept for parity with the manual trigger in the original UI.
	r.Post("/api/businesses/backlog", s.handleBacklog)
	r.Get("/api/businesses/backlog", s.handleBacklog)

	r.Get("/api/scrape-log", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		entries, err := s.RecentScrapeLog(r.Context(), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, entries)
	})

	return r
}

// handleSearch validates all parameters before any side effect: a malformed
// request must not trigger directory calls or renders.
func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := places.Query{
		Type:     r.URL.Query().Get("businessType"),
		Radius:   r.URL.Query().Get("radius"),
		Location: r.URL.Query().Get("location"),
	}
	for name, v := range map[string]string{
		"businessType": q.Type,
		"radius":       q.Radius,
		"location":     q.Location,
	} {
		if v == "" {
			writeError(w, 400, fmt.Errorf("%w: %s", ErrMissingParameter, name))
			return
		}
	}

	businesses, err := s.Discover(r.Context(), q)
	if err != nil {
		s.logger.Error("api: discovery failed", "error", err, "type", q.Type)
		writeError(w, 500, err)
		return
	}
	if businesses == nil {
		businesses = []*Business{}
	}
	writeJSON(w, 200, map[string]any{"businesses": businesses})
}

func (s *Service) handleBacklog(w http.ResponseWriter, r *http.Request) {
	processed, err := s.ScrapeBacklog(r.Context())
	if err != nil {
		s.logger.Error("api: backlog pass failed", "error", err)
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"message":   fmt.Sprintf("backlog pass complete, %d record(s) processed", processed),
		"processed": processed,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
