package stac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/search"
)

func newTestClient(t *testing.T, srv string, opts ...Option) *Client {
	t.Helper()
	c, err := New(Provider{Name: "fake", BaseURL: srv}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSearch_DirectPageAndWireFormat(t *testing.T) {
	f := newFake(pointItems(250))
	srv := f.start(t)
	c := newTestClient(t, srv.URL)

	res, err := c.Search(context.Background(), Request{
		Collections: []string{"sentinel-2-l2a"},
		BBox:        []float64{9, 9, 13, 13},
		Datetime:    "2023-01-01/2023-12-31",
		Limit:       5000,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Err() != nil {
		t.Fatalf("result err: %v", res.Err())
	}
	if res.Len() != 250 || res.HasNextPage() {
		t.Fatalf("len=%d next=%v want 250 items in one capped page", res.Len(), res.HasNextPage())
	}
	got := f.recorded()[0]
	if got.Limit != MaxLimit {
		t.Fatalf("limit=%d want %d", got.Limit, MaxLimit)
	}
	if got.Datetime != "2023-01-01T00:00:00Z/2023-12-31T23:59:59Z" {
		t.Fatalf("datetime=%q", got.Datetime)
	}
	if res.Provider() != "fake" {
		t.Fatalf("provider=%q", res.Provider())
	}
}

func TestSearch_MaxItemsTruncatesAndCompletes(t *testing.T) {
	f := newFake(pointItems(250))
	srv := f.start(t)
	c := newTestClient(t, srv.URL)

	s, err := c.Open(context.Background(), Request{Limit: 100, MaxItems: 40})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n := s.Len(context.Background()); n != 40 {
		t.Fatalf("len=%d want 40", n)
	}
	if len(f.recorded()) != 1 {
		t.Fatalf("capped search must not escalate, saw %d requests", len(f.recorded()))
	}
}

func TestSearch_ValidationErrors(t *testing.T) {
	f := newFake(nil)
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithCollectionValidation(true))

	if _, err := c.Search(context.Background(), Request{BBox: []float64{1, 2, 3}}); !errors.Is(err, ErrBBoxLength) {
		t.Fatalf("want ErrBBoxLength, got %v", err)
	}
	_, err := c.Search(context.Background(), Request{Collections: []string{"sentinel-2-l2a", "nope"}})
	if !errors.Is(err, ErrInvalidCollections) {
		t.Fatalf("want ErrInvalidCollections, got %v", err)
	}
	if len(f.recorded()) != 0 {
		t.Fatalf("invalid requests must not reach /search")
	}
}

func TestSearch_TransportFailureYieldsErrResult(t *testing.T) {
	f := newFake(pointItems(10))
	srv := f.start(t)
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	res, err := c.Search(context.Background(), Request{Limit: 10})
	if err != nil {
		t.Fatalf("transport failure must not be a call error: %v", err)
	}
	if res.Err() == nil || res.Len() != 0 {
		t.Fatalf("err=%v len=%d", res.Err(), res.Len())
	}
}

func TestSearch_UpstreamStatusError(t *testing.T) {
	f := newFake(pointItems(10))
	f.failPaging = true
	srv := f.start(t)
	c := newTestClient(t, srv.URL)

	_, err := c.follow(context.Background(), nextLink(srv.URL, "10"), mustParams(t, c, Request{}))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 502 {
		t.Fatalf("want StatusError 502, got %v", err)
	}
}

func TestOpen_PaginatedTierRecoversEverything(t *testing.T) {
	f := newFake(pointItems(250))
	srv := f.start(t)
	c := newTestClient(t, srv.URL)

	s, err := c.Open(context.Background(), Request{Limit: 100})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := s.AllItems(context.Background())
	if len(items) != 250 {
		t.Fatalf("len=%d want 250", len(items))
	}
	st := s.Status()
	if st.ResolvedTier != search.TierPaginated || st.Signal != search.SignalNextPage {
		t.Fatalf("status=%+v", st)
	}
	if ids := s.ProductIDs(context.Background()); len(ids) != 250 {
		t.Fatalf("unique ids=%d", len(ids))
	}
}

func TestOpen_TemporalChunkingWhenPagingFails(t *testing.T) {
	f := newFake(pointItems(250))
	f.failPaging = true
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithChunking(ChunkConfig{
		Window:      60 * 24 * time.Hour,
		MaxDepth:    3,
		PageLimit:   30,
		Concurrency: 3,
	}))

	s, err := c.Open(context.Background(), Request{Limit: 100, Datetime: "2023-01-01/2023-12-31"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := s.AllItems(context.Background())
	if len(items) != 250 {
		t.Fatalf("len=%d want 250", len(items))
	}
	st := s.Status()
	if st.ResolvedTier != search.TierChunked {
		t.Fatalf("resolved tier=%s tiers=%+v", st.ResolvedTier, st.Tiers)
	}
	if st.Tiers[0].Outcome != search.OutcomeFailed {
		t.Fatalf("paginated outcome=%s", st.Tiers[0].Outcome)
	}
}

func TestOpen_SpatialChunkingWithoutDatetime(t *testing.T) {
	f := newFake(pointItems(150))
	f.failPaging = true
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithChunking(ChunkConfig{H3Res: 2, MaxDepth: 1, PageLimit: 1000, Concurrency: 2}))

	s, err := c.Open(context.Background(), Request{Limit: 100, BBox: []float64{9.5, 9.5, 12.5, 12.5}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := s.AllItems(context.Background())
	if len(items) != 150 {
		t.Fatalf("len=%d want 150", len(items))
	}
	if s.Status().ResolvedTier != search.TierChunked {
		t.Fatalf("status=%+v", s.Status())
	}
}

func TestChunker_IntersectsIsClippedLocally(t *testing.T) {
	f := newFake(pointItems(150))
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithChunking(ChunkConfig{H3Res: 2, PageLimit: 1000}))

	p, err := c.Params(context.Background(), Request{
		Intersects: "POLYGON((9.9 9.9, 11 9.9, 11 11, 9.9 11, 9.9 9.9))",
	})
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	got, err := c.Chunker().FetchChunked(context.Background(), p)
	if err != nil {
		t.Fatalf("FetchChunked: %v", err)
	}
	for _, it := range got {
		if it.BBox[0] > 11 || it.BBox[1] > 11 {
			t.Fatalf("item %s outside the intersects polygon: %v", it.ID, it.BBox)
		}
	}
	for _, sp := range f.recorded() {
		if len(sp.Intersects) > 0 {
			t.Fatalf("chunk request carried intersects together with bbox")
		}
	}
}

func TestChunker_ClipKeepsItemsTouchingTheQuery(t *testing.T) {
	f := newFake([]model.Item{
		{Type: "Feature", ID: "inside", BBox: []float64{10, 10, 10.5, 10.5}},
		{Type: "Feature", ID: "edge", BBox: []float64{11, 10, 12, 11}},
		{Type: "Feature", ID: "far", BBox: []float64{13, 13, 14, 14}},
	})
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithChunking(ChunkConfig{H3Res: 2, PageLimit: 1000}))

	p := mustParams(t, c, Request{})
	// a line query reduces to its envelope box [9.5,9.5,11,11]
	p.Intersects = json.RawMessage(`{"type":"LineString","coordinates":[[9.5,9.5],[11,11]]}`)
	got, err := c.Chunker().FetchChunked(context.Background(), p)
	if err != nil {
		t.Fatalf("FetchChunked: %v", err)
	}
	seen := map[string]bool{}
	for _, it := range got {
		seen[it.ID] = true
	}
	if !seen["inside"] || !seen["edge"] || seen["far"] {
		t.Fatalf("ids=%v", seen)
	}
}

func TestChunker_NothingToChunk(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.Chunker().FetchChunked(context.Background(), mustParams(t, c, Request{}))
	if !errors.Is(err, ErrNotChunkable) {
		t.Fatalf("want ErrNotChunkable, got %v", err)
	}
}

func TestFetchAll_PageLimit(t *testing.T) {
	f := newFake(pointItems(250))
	srv := f.start(t)
	c := newTestClient(t, srv.URL, WithMaxPages(2))

	_, err := c.FetchAll(context.Background(), mustParams(t, c, Request{Limit: 100}))
	if !errors.Is(err, ErrPageLimit) {
		t.Fatalf("want ErrPageLimit, got %v", err)
	}
}

func TestCollections_ListSearchAndInfoCache(t *testing.T) {
	f := newFake(nil)
	srv := f.start(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	all, err := c.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if !slices.Equal(all, []string{"landsat-c2-l2", "sentinel-1-grd", "sentinel-2-l2a"}) {
		t.Fatalf("collections=%v", all)
	}
	hits, err := c.SearchCollections(ctx, "SENTINEL")
	if err != nil || len(hits) != 2 {
		t.Fatalf("search=%v err=%v", hits, err)
	}

	for i := 0; i < 3; i++ {
		info, err := c.CollectionInfo(ctx, "landsat-c2-l2")
		if err != nil {
			t.Fatalf("CollectionInfo: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(info, &doc); err != nil || doc["id"] != "landsat-c2-l2" {
			t.Fatalf("info=%s err=%v", info, err)
		}
	}
	if n := f.count("/collections/landsat-c2-l2"); n != 1 {
		t.Fatalf("collection fetched %d times, want 1", n)
	}
	if n := f.count("/collections"); n != 1 {
		t.Fatalf("collection list fetched %d times, want 1", n)
	}
	if _, err := c.CollectionInfo(ctx, "nope"); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("want ErrUnknownCollection, got %v", err)
	}
}

func mustParams(t *testing.T, c *Client, r Request) model.SearchParams {
	t.Helper()
	p, err := c.Params(context.Background(), r)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	return p
}

func nextLink(base, token string) model.Link {
	return model.Link{
		Rel:    "next",
		Href:   base + "/search",
		Method: http.MethodPost,
		Body:   json.RawMessage(`{"token":"` + token + `"}`),
		Merge:  true,
	}
}
