package prospect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/prospect/dbopen"
	"github.com/hazyhaar/prospect/internal/places"
	"github.com/hazyhaar/prospect/internal/store"

	_ "modernc.org/sqlite"
)

type stubRenderer struct {
	html  string
	calls atomic.Int64
}

func (r *stubRenderer) HTML(ctx context.Context, url string) (string, error) {
	r.calls.Add(1)
	return r.html, nil
}

// fakeDirectory serves one search page and details for every known place,
// counting requests.
func fakeDirectory(t *testing.T, placeIDs []string, websites map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/nearbysearch/json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		results := make([]map[string]any, 0, len(placeIDs))
		for _, id := range placeIDs {
			results = append(results, map[string]any{"place_id": id, "name": "Biz " + id})
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "OK", "results": results})
	})
	mux.HandleFunc("/details/json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id := r.URL.Query().Get("place_id")
		result := map[string]any{"name": "Biz " + id}
		if site, ok := websites[id]; ok {
			result["website"] = site
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "OK", "result": result})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestService(t *testing.T, dirURL string, r *stubRenderer) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t)
	cfg := Config{
		Places: places.Config{
			BaseURL:   dirURL,
			APIKey:    "test-key",
			PageDelay: time.Millisecond,
		},
	}
	svc, err := New(db, cfg, nil, WithRenderer(r))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestHealthz(t *testing.T) {
	srv, _ := fakeDirectory(t, nil, nil)
	svc := newTestService(t, srv.URL, &stubRenderer{})

	rec := httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSearchMissingParamIs400BeforeSideEffects(t *testing.T) {
	srv, hits := fakeDirectory(t, []string{"p1"}, nil)
	r := &stubRenderer{}
	svc := newTestService(t, srv.URL, r)
	h := svc.Routes()

	for _, path := range []string{
		"/api/businesses/search",
		"/api/businesses/search?businessType=cafe",
		"/api/businesses/search?businessType=cafe&radius=1000",
		"/api/businesses/search?radius=1000&location=0,0",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != 400 {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: bad body: %v", path, err)
		}
		if body["error"] == "" {
			t.Errorf("%s: missing error field", path)
		}
	}
	// Validation happens before any directory call or render.
	if hits.Load() != 0 {
		t.Errorf("directory hit %d times, want 0", hits.Load())
	}
	if r.calls.Load() != 0 {
		t.Errorf("renderer called %d times, want 0", r.calls.Load())
	}
}

func TestSearchEndToEnd(t *testing.T) {
	srv, _ := fakeDirectory(t, []string{"p1", "p2"},
		map[string]string{"p1": "https://p1.test"})
	r := &stubRenderer{html: `<body>sales@p1.test</body>`}
	svc := newTestService(t, srv.URL, r)

	rec := httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, httptest.NewRequest("GET",
		"/api/businesses/search?businessType=cafe&radius=1500&location=45.5,-73.5", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Businesses []*Business `json:"businesses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Businesses) != 2 {
		t.Fatalf("got %d businesses, want 2", len(body.Businesses))
	}

	// Records are persisted, emails attached to the place with a website.
	b, err := svc.store.Get(context.Background(), "p1")
	if err != nil || b == nil {
		t.Fatalf("get p1: %v %v", b, err)
	}
	if len(b.Emails) != 1 || b.Emails[0] != "sales@p1.test" {
		t.Errorf("p1 emails = %v, want [sales@p1.test]", b.Emails)
	}
	if r.calls.Load() != 1 {
		t.Errorf("renderer called %d times, want 1 (only p1 has a website)", r.calls.Load())
	}
}

func TestBacklogEndpoint(t *testing.T) {
	srv, _ := fakeDirectory(t, nil, nil)
	r := &stubRenderer{html: `<body>info@seeded.test</body>`}
	svc := newTestService(t, srv.URL, r)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		err := svc.store.Upsert(ctx, &store.Business{
			PlaceID: id,
			Name:    "Seeded " + id,
			Website: "https://" + id + ".test",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, httptest.NewRequest("POST", "/api/businesses/backlog", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Message   string `json:"message"`
		Processed int    `json:"processed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Processed != 3 {
		t.Errorf("processed = %d, want 3", body.Processed)
	}
	if body.Message == "" {
		t.Error("missing message field")
	}

	// A second pass finds nothing eligible.
	rec = httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/businesses/backlog", nil))
	if rec.Code != 200 {
		t.Fatalf("second pass status = %d, want 200", rec.Code)
	}
	body.Processed = -1
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Processed != 0 {
		t.Errorf("second pass processed = %d, want 0", body.Processed)
	}
}

func TestListBusinessesEndpoint(t *testing.T) {
	srv, _ := fakeDirectory(t, nil, nil)
	svc := newTestService(t, srv.URL, &stubRenderer{})
	ctx := context.Background()

	if err := svc.store.Upsert(ctx, &store.Business{PlaceID: "x", Name: "X"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/businesses", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Businesses []*Business `json:"businesses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Businesses) != 1 || body.Businesses[0].PlaceID != "x" {
		t.Errorf("businesses = %+v, want one record x", body.Businesses)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
addr: ":9090"
db_path: /tmp/p.db
places:
  api_key: abc
  max_pages: 2
pipeline:
  workers: 8
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Places.MaxPages != 2 {
		t.Errorf("max_pages = %d", cfg.Places.MaxPages)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("workers = %d", cfg.Pipeline.Workers)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "env-key")
	var cfg Config
	cfg.defaults()
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DBPath != "prospect.db" {
		t.Errorf("db_path = %q, want prospect.db", cfg.DBPath)
	}
	if cfg.Places.APIKey != "env-key" {
		t.Errorf("api key = %q, want env fallback", cfg.Places.APIKey)
	}
}
