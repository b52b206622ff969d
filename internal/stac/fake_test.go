package stac

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

// fakeSTAC is a minimal STAC API: POST /search with bbox, datetime, limit
// and token paging, plus the collections endpoints.
type fakeSTAC struct {
	items      []model.Item
	nextLinks  bool
	matched    bool
	failPaging bool

	mu       sync.Mutex
	searches []model.SearchParams
	paths    map[string]int
}

func newFake(items []model.Item) *fakeSTAC {
	return &fakeSTAC{items: items, nextLinks: true, paths: map[string]int{}}
}

func (f *fakeSTAC) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeSTAC) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paths[path]
}

func (f *fakeSTAC) recorded() []model.SearchParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SearchParams(nil), f.searches...)
}

func (f *fakeSTAC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths[r.URL.Path]++
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/collections" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"collections": []map[string]string{
			{"id": "sentinel-2-l2a"}, {"id": "landsat-c2-l2"}, {"id": "sentinel-1-grd"},
		}})
	case strings.HasPrefix(r.URL.Path, "/collections/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(r.URL.Path, "/collections/")
		writeJSON(w, map[string]any{"id": id, "type": "Collection"})
	case r.URL.Path == "/search" && r.Method == http.MethodPost:
		f.search(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSTAC) search(w http.ResponseWriter, r *http.Request) {
	var p model.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.searches = append(f.searches, p)
	f.mu.Unlock()

	if p.Token != "" && f.failPaging {
		http.Error(w, "paging disabled", http.StatusBadGateway)
		return
	}

	var hits []model.Item
	for _, it := range f.items {
		if matchesDatetime(it, p.Datetime) && matchesBBox(it, p.BBox) {
			hits = append(hits, it)
		}
	}
	offset, _ := strconv.Atoi(p.Token)
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	end := min(offset+limit, len(hits))
	page := []model.Item{}
	if offset < len(hits) {
		page = hits[offset:end]
	}

	fc := model.FeatureCollection{Type: "FeatureCollection", Features: page}
	if f.matched {
		n := len(hits)
		fc.NumberMatched = &n
	}
	if f.nextLinks && end < len(hits) {
		fc.Links = []model.Link{{
			Rel:    "next",
			Href:   "http://" + r.Host + "/search",
			Method: http.MethodPost,
			Body:   json.RawMessage(fmt.Sprintf(`{"token":%q}`, strconv.Itoa(end))),
			Merge:  true,
		}}
	}
	writeJSON(w, fc)
}

func matchesDatetime(it model.Item, dt string) bool {
	if dt == "" {
		return true
	}
	ts, ok := it.Datetime()
	if !ok {
		return false
	}
	a, b, found := strings.Cut(dt, "/")
	if !found {
		t, err := time.Parse(time.RFC3339Nano, dt)
		return err == nil && ts.Equal(t)
	}
	if a != ".." {
		start, err := time.Parse(time.RFC3339Nano, a)
		if err != nil || ts.Before(start) {
			return false
		}
	}
	if b != ".." {
		end, err := time.Parse(time.RFC3339Nano, b)
		if err != nil || ts.After(end) {
			return false
		}
	}
	return true
}

func matchesBBox(it model.Item, q []float64) bool {
	if len(q) != 4 {
		return true
	}
	bb, ok := it.Footprint2D()
	if !ok {
		return false
	}
	return bb.West <= q[2] && q[0] <= bb.East && bb.South <= q[3] && q[1] <= bb.North
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(v)
}

// pointItems spreads n point items over 2023 and over the box [10,10,12,12].
func pointItems(n int) []model.Item {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	step := (365 * 24 * time.Hour) / time.Duration(n)
	out := make([]model.Item, n)
	for i := range out {
		x := 10 + 2*float64(i%15)/15 + 0.01
		y := 10 + 2*float64(i/15%10)/10 + 0.01
		out[i] = model.Item{
			Type:       "Feature",
			ID:         fmt.Sprintf("S2_%04d", i),
			Collection: "sentinel-2-l2a",
			Geometry:   json.RawMessage(fmt.Sprintf(`{"type":"Point","coordinates":[%g,%g]}`, x, y)),
			BBox:       []float64{x, y, x, y},
			Properties: map[string]any{"datetime": start.Add(time.Duration(i) * step).Format(time.RFC3339)},
		}
	}
	return out
}
