// Package stac is an HTTP client for STAC API search endpoints. It issues
// the direct search and provides the paginated and chunked fallback tiers
// used by package search.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geodata-search/internal/core/httpclient"
	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
	h3mapper "github.com/mohammed-shakir/geodata-search/internal/mapper/h3"
	"github.com/mohammed-shakir/geodata-search/internal/search"
)

const (
	// MaxLimit caps the per-request page size.
	MaxLimit     = 1000
	DefaultLimit = 100

	defaultMaxPages  = 100
	maxErrBody       = 4096
	contentTypeJSON  = "application/json"
	acceptGeoJSON    = "application/geo+json"
	defaultInfoCache = 128
)

// Request is a caller-facing search. Intersects accepts anything
// geometry.Normalize accepts.
type Request struct {
	Collections []string
	BBox        []float64
	Intersects  any
	Datetime    string
	Query       map[string]any
	IDs         []string
	Limit       int
	// MaxItems truncates the first page; zero means no cap
	MaxItems int
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithCollectionValidation checks requested collections against the
// provider's collection list before searching.
func WithCollectionValidation(on bool) Option { return func(c *Client) { c.validate = on } }

func WithCollectionCacheSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.infoSize = n
		}
	}
}

func WithChunking(cfg ChunkConfig) Option { return func(c *Client) { c.chunkCfg = cfg } }

type Client struct {
	provider Provider
	http     *http.Client
	log      *slog.Logger
	maxPages int
	validate bool
	infoSize int
	chunkCfg ChunkConfig
	chunker  *Chunker

	mu    sync.Mutex
	index map[string]string // collection id -> href
	info  *lru.Cache[string, json.RawMessage]
}

func New(p Provider, opts ...Option) (*Client, error) {
	if p.BaseURL == "" {
		return nil, errors.New("stac: provider base URL is required")
	}
	c := &Client{
		provider: p,
		http:     httpclient.NewOutbound(0),
		log:      slog.Default(),
		maxPages: defaultMaxPages,
		infoSize: defaultInfoCache,
		chunkCfg: DefaultChunkConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	info, err := lru.New[string, json.RawMessage](c.infoSize)
	if err != nil {
		return nil, fmt.Errorf("stac: collection cache: %w", err)
	}
	c.info = info
	c.log = c.log.With("provider", p.Name)
	c.chunker = NewChunker(c, h3mapper.New(), c.chunkCfg)
	return c, nil
}

func (c *Client) Provider() Provider { return c.provider }

func (c *Client) Chunker() *Chunker { return c.chunker }

// Params validates r and converts it to wire parameters.
func (c *Client) Params(ctx context.Context, r Request) (model.SearchParams, error) {
	var p model.SearchParams
	if len(r.Collections) > 0 {
		if c.validate {
			if err := c.checkCollections(ctx, r.Collections); err != nil {
				return p, err
			}
		}
		p.Collections = append([]string(nil), r.Collections...)
	}
	if r.Intersects != nil {
		g, err := geometry.Normalize(r.Intersects)
		if err != nil {
			return p, fmt.Errorf("intersects: %w", err)
		}
		raw, err := geometry.MarshalGeoJSON(g)
		if err != nil {
			return p, fmt.Errorf("intersects: %w", err)
		}
		p.Intersects = raw
	}
	if len(r.BBox) > 0 {
		if len(r.BBox) != 4 {
			return p, fmt.Errorf("%w, got %d values", ErrBBoxLength, len(r.BBox))
		}
		p.BBox = append([]float64(nil), r.BBox...)
	}
	p.Datetime = FormatDatetime(r.Datetime)
	p.Query = r.Query
	p.IDs = r.IDs
	p.Limit = clampLimit(r.Limit)
	return p.Clone(), nil
}

// Search runs the direct search. Request validation problems are returned
// as errors; transport and upstream failures come back as a Result whose
// Err is set.
func (c *Client) Search(ctx context.Context, r Request) (*search.Result, error) {
	p, err := c.Params(ctx, r)
	if err != nil {
		return nil, err
	}
	fc, err := c.post(ctx, "search", c.provider.SearchURL(), p)
	if err != nil {
		c.log.WarnContext(ctx, "direct search failed", "err", err)
		return search.NewResult(c.provider.Name, p, nil, search.WithErr(err)), nil
	}

	items := fc.Features
	if r.MaxItems > 0 && len(items) > r.MaxItems {
		items = items[:r.MaxItems]
	}
	opts := []search.ResultOption{}
	if m := fc.Matched(); m != nil {
		opts = append(opts, search.WithMatched(*m))
	}
	if _, ok := fc.Next(); ok {
		opts = append(opts, search.WithNextPage(true))
	}
	return search.NewResult(c.provider.Name, p, items, opts...), nil
}

// Open runs the direct search and wraps it with this client as the
// paginated and chunked fallback tiers. A MaxItems cap marks the page as
// complete.
func (c *Client) Open(ctx context.Context, r Request, opts ...search.Option) (*search.Search, error) {
	res, err := c.Search(ctx, r)
	if err != nil {
		return nil, err
	}
	base := []search.Option{
		search.WithPaginator(c),
		search.WithChunker(c.chunker),
		search.WithPageSize(res.Params().Limit),
		search.WithLogger(c.log),
	}
	if r.MaxItems > 0 {
		base = append(base, search.WithComplete())
	}
	return search.New(res, append(base, opts...)...), nil
}

// FetchAll follows next links until the server stops advertising one.
func (c *Client) FetchAll(ctx context.Context, params model.SearchParams) ([]model.Item, error) {
	p := params.Clone()
	p.Limit = clampLimit(p.Limit)
	fc, err := c.post(ctx, "paginate", c.provider.SearchURL(), p)
	if err != nil {
		return nil, err
	}
	all := append([]model.Item(nil), fc.Features...)
	for page := 1; ; page++ {
		next, ok := fc.Next()
		if !ok || len(fc.Features) == 0 {
			return all, nil
		}
		if page >= c.maxPages {
			return nil, fmt.Errorf("stac: %w after %d pages (%d items)", ErrPageLimit, page, len(all))
		}
		fc, err = c.follow(ctx, next, p)
		if err != nil {
			return nil, fmt.Errorf("stac: page %d: %w", page+1, err)
		}
		all = append(all, fc.Features...)
	}
}

func (c *Client) follow(ctx context.Context, next model.Link, p model.SearchParams) (model.FeatureCollection, error) {
	if strings.EqualFold(next.Method, http.MethodPost) {
		body := []byte(next.Body)
		if len(body) == 0 || next.Merge {
			merged, err := mergeBody(p, next.Body)
			if err != nil {
				return model.FeatureCollection{}, err
			}
			body = merged
		}
		return c.do(ctx, "paginate", http.MethodPost, next.Href, body)
	}
	return c.do(ctx, "paginate", http.MethodGet, next.Href, nil)
}

func mergeBody(p model.SearchParams, extra json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if len(extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	var add map[string]any
	if err := json.Unmarshal(extra, &add); err != nil {
		return nil, fmt.Errorf("decode next body: %w", err)
	}
	for k, v := range add {
		m[k] = v
	}
	return json.Marshal(m)
}

func (c *Client) post(ctx context.Context, op, url string, p model.SearchParams) (model.FeatureCollection, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return model.FeatureCollection{}, fmt.Errorf("encode search: %w", err)
	}
	return c.do(ctx, op, http.MethodPost, url, body)
}

func (c *Client) do(ctx context.Context, op, method, url string, body []byte) (model.FeatureCollection, error) {
	var fc model.FeatureCollection
	raw, err := c.roundTrip(ctx, op, method, url, body)
	if err != nil {
		return fc, err
	}
	trim := bytes.TrimSpace(raw)
	if len(trim) > 0 && trim[0] == '[' {
		// some servers answer with a bare feature list
		if err := json.Unmarshal(trim, &fc.Features); err != nil {
			return fc, fmt.Errorf("stac %s: decode features: %w", op, err)
		}
		fc.Type = "FeatureCollection"
		return fc, nil
	}
	if err := json.Unmarshal(trim, &fc); err != nil {
		return fc, fmt.Errorf("stac %s: decode: %w", op, err)
	}
	return fc, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("stac %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Accept", acceptGeoJSON+", "+contentTypeJSON)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveUpstream(c.provider.Name, op, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("stac %s: %w", op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug("close body", "err", cerr)
		}
	}()
	observability.ObserveUpstream(c.provider.Name, op, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stac %s: read: %w", op, err)
	}
	return b, nil
}

// Collections lists collection ids, sorted. The list is fetched once.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	idx, err := c.collectionIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(idx))
	for id := range idx {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// SearchCollections returns ids containing keyword, case-insensitively.
func (c *Client) SearchCollections(ctx context.Context, keyword string) ([]string, error) {
	all, err := c.Collections(ctx)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	out := make([]string, 0, len(all))
	for _, id := range all {
		if strings.Contains(strings.ToLower(id), kw) {
			out = append(out, id)
		}
	}
	return out, nil
}

// CollectionInfo returns the raw collection document, memoized in an LRU.
func (c *Client) CollectionInfo(ctx context.Context, id string) (json.RawMessage, error) {
	if v, ok := c.info.Get(id); ok {
		return v, nil
	}
	idx, err := c.collectionIndex(ctx)
	if err != nil {
		return nil, err
	}
	href, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, id)
	}
	b, err := c.roundTrip(ctx, "collection", http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("stac collection %q: invalid JSON", id)
	}
	c.info.Add(id, json.RawMessage(b))
	return b, nil
}

func (c *Client) collectionIndex(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()
	if idx != nil {
		return idx, nil
	}

	b, err := c.roundTrip(ctx, "collections", http.MethodGet, c.provider.CollectionsURL(), nil)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Collections []struct {
			ID string `json:"id"`
		} `json:"collections"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("stac collections: decode: %w", err)
	}
	idx = make(map[string]string, len(doc.Collections))
	for _, col := range doc.Collections {
		if col.ID != "" {
			idx[col.ID] = c.provider.CollectionsURL() + "/" + col.ID
		}
	}

	c.mu.Lock()
	c.index = idx
	c.mu.Unlock()
	return idx, nil
}

func (c *Client) checkCollections(ctx context.Context, cols []string) error {
	idx, err := c.collectionIndex(ctx)
	if err != nil {
		return fmt.Errorf("validate collections: %w", err)
	}
	var bad []string
	for _, col := range cols {
		if _, ok := idx[col]; !ok {
			bad = append(bad, col)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCollections, bad)
	}
	return nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
