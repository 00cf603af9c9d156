package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"smartxerox/internal/domain"
)

// fakeQdrant records the requests it receives and serves canned responses.
type fakeQdrant struct {
	mu       sync.Mutex
	requests []string
	exists   bool
	size     int
	upserted []map[string]any
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("api-key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/orders":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmtJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}}}})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/orders":
		f.exists = true
		fmtJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodDelete && r.URL.Path == "/collections/orders":
		f.exists = false
		fmtJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/orders/points":
		var body struct {
			Points []map[string]any `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.upserted = append(f.upserted, body.Points...)
		fmtJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/orders/points/count":
		fmtJSON(w, map[string]any{"result": map[string]any{"count": len(f.upserted)}})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/orders/points/search":
		fmtJSON(w, map[string]any{"result": []map[string]any{{
			"score": 0.87,
			"payload": map[string]any{
				"doc_id":        "1002",
				"text":          "order 1002",
				"meta_user":     "Bob",
				"meta_order_id": "1002",
			},
		}}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeQdrant) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeQdrant) points() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.upserted...)
}

func fmtJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newStorage(url string) *Storage {
	return NewStorage(Config{URL: url, APIKey: "secret", Collection: "orders"})
}

func TestStorage_InitCreatesMissingCollection(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	if err := newStorage(srv.URL).Init(context.Background(), 4); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	got := strings.Join(fake.calls(), ",")
	if got != "GET /collections/orders,PUT /collections/orders" {
		t.Errorf("requests = %s", got)
	}
}

func TestStorage_InitKeepsMatchingCollection(t *testing.T) {
	fake := &fakeQdrant{exists: true, size: 4}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	if err := newStorage(srv.URL).Init(context.Background(), 4); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if calls := fake.calls(); len(calls) != 1 {
		t.Errorf("requests = %v, want only the GET", calls)
	}
}

func TestStorage_InitRecreatesOnDimensionChange(t *testing.T) {
	fake := &fakeQdrant{exists: true, size: 8}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	if err := newStorage(srv.URL).Init(context.Background(), 4); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	got := strings.Join(fake.calls(), ",")
	want := "GET /collections/orders,DELETE /collections/orders,PUT /collections/orders"
	if got != want {
		t.Errorf("requests = %s, want %s", got, want)
	}
}

func TestStorage_UpsertCountSearch(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()
	s := newStorage(srv.URL)

	docs := []domain.Document{{ID: "1002", Text: "order 1002", Metadata: map[string]string{"user": "Bob"}}}
	if err := s.Upsert(ctx, docs, [][]float64{{1, 0}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	points := fake.points()
	if len(points) != 1 {
		t.Fatalf("upserted %d points, want 1", len(points))
	}
	id, _ := points[0]["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("point id %q is not a UUID", id)
	}
	if id != pointID("1002") {
		t.Error("point id should be stable per document")
	}

	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}

	res, err := s.Search(ctx, []float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("len = %d, want 1", len(res))
	}
	d := res[0].Document
	if d.ID != "1002" || d.Text != "order 1002" || d.Metadata["user"] != "Bob" || d.Metadata["order_id"] != "1002" {
		t.Errorf("unexpected document: %+v", d)
	}
	if res[0].Score != 0.87 {
		t.Errorf("Score = %f", res[0].Score)
	}
}

func TestStorage_ErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newStorage(srv.URL)
	if _, err := s.Search(context.Background(), []float64{1}, 1); err == nil {
		t.Error("Search() should fail on 500")
	}
	if err := s.Upsert(context.Background(), []domain.Document{{ID: "x"}}, nil); err == nil {
		t.Error("length mismatch should fail")
	}
}
