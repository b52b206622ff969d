// Package executor runs validated search requests against STAC providers
// and writes the results.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/core/router"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
	"github.com/mohammed-shakir/geodata-search/internal/items"
	"github.com/mohammed-shakir/geodata-search/internal/resolveevents"
	"github.com/mohammed-shakir/geodata-search/internal/search"
	"github.com/mohammed-shakir/geodata-search/internal/snapshot"
	"github.com/mohammed-shakir/geodata-search/internal/spatial"
	"github.com/mohammed-shakir/geodata-search/internal/stac"
)

// Dialer builds the STAC client for a provider name.
type Dialer func(provider string) (*stac.Client, error)

type EventPublisher interface {
	Publish(ev resolveevents.Event)
}

type SnapshotWriter interface {
	Put(ctx context.Context, res *search.Search) (snapshot.Snapshot, error)
}

type Executor struct {
	logger          *slog.Logger
	dial            Dialer
	defaultProvider string
	verbose         bool
	limit           int
	maxItems        int
	snapshots       SnapshotWriter
	events          EventPublisher

	mu      sync.Mutex
	clients map[string]*stac.Client
}

type Option func(*Executor)

func WithSnapshots(s SnapshotWriter) Option { return func(e *Executor) { e.snapshots = s } }

func WithEvents(p EventPublisher) Option { return func(e *Executor) { e.events = p } }

func WithVerbose(v bool) Option { return func(e *Executor) { e.verbose = v } }

// WithDefaults sets the page size and item cap used when a request sets none.
func WithDefaults(limit, maxItems int) Option {
	return func(e *Executor) { e.limit, e.maxItems = limit, maxItems }
}

func New(logger *slog.Logger, defaultProvider string, dial Dialer, opts ...Option) *Executor {
	e := &Executor{
		logger:          logger,
		dial:            dial,
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
		clients:         map[string]*stac.Client{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var _ router.SearchHandler = (*Executor)(nil)

type searchResponse struct {
	model.FeatureCollection
	Search *search.Status  `json:"search,omitempty"`
	Filter *spatial.Report `json:"filter,omitempty"`
}

func (e *Executor) HandleSearch(ctx context.Context, w http.ResponseWriter, _ *http.Request, q router.SearchQuery) {
	c, err := e.client(q.Provider)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := q.Request
	if req.Limit == 0 {
		req.Limit = e.limit
	}
	if req.MaxItems == 0 {
		req.MaxItems = e.maxItems
	}
	s, err := c.Open(ctx, req,
		search.WithVerbose(e.verbose),
		search.WithObserver(observability.SearchObserver{}),
	)
	if err != nil {
		e.logger.InfoContext(ctx, "search rejected", "provider", c.Provider().Name, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	direct := s.Direct()
	if direct.Err() != nil && direct.Len() == 0 {
		http.Error(w, "upstream search failed: "+direct.Err().Error(), statusFor(direct.Err()))
		return
	}

	var col *items.Collection
	matched, hasMatched := direct.Matched()
	if q.All {
		col = s.Collection(ctx)
		matched, hasMatched = s.Matched(ctx)
		e.record(ctx, s, col.Len())
	} else {
		col = items.New(s.Provider(), direct.Items())
	}

	resp := searchResponse{}
	if q.Filter != nil {
		filtered, rep, err := col.FilterByGeometry(q.Filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		observability.ObserveFilter(rep.Matched, rep.Input-rep.Matched-rep.Skipped-rep.NoFootprint, rep.Skipped, rep.NoFootprint)
		if rep.Skipped > 0 {
			e.logger.WarnContext(ctx, "items with malformed footprints skipped", "count", rep.Skipped, "ids", rep.SkippedIDs)
		}
		col = filtered
		resp.Filter = &rep
	}
	if len(q.SortBy) > 0 {
		col = col.Sorted(q.SortBy)
	}

	resp.FeatureCollection = col.FeatureCollection()
	if hasMatched {
		resp.NumberMatched = &matched
	}
	if q.Status {
		st := s.Status()
		resp.Search = &st
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Search-Key", s.Key())
	if st := s.Status(); st.Resolved {
		w.Header().Set("X-Search-Tier", string(st.ResolvedTier))
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		e.logger.WarnContext(ctx, "write response", "err", err)
	}
}

// record stores the snapshot and publishes the resolution event; failures
// are logged and never fail the request.
func (e *Executor) record(ctx context.Context, s *search.Search, n int) {
	if e.snapshots != nil {
		if _, err := e.snapshots.Put(ctx, s); err != nil {
			e.logger.WarnContext(ctx, "snapshot put failed", "key", s.Key(), "err", err)
		}
	}
	if e.events != nil {
		e.events.Publish(resolveevents.FromStatus(s.Key(), s.Status(), n))
	}
}

func (e *Executor) client(name string) (*stac.Client, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = e.defaultProvider
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[name]; ok {
		return c, nil
	}
	c, err := e.dial(name)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}
	e.clients[name] = c
	return c, nil
}

func statusFor(err error) int {
	var gerr *geometry.Error
	var serr *stac.StatusError
	switch {
	case errors.As(err, &gerr),
		errors.Is(err, stac.ErrBBoxLength),
		errors.Is(err, stac.ErrInvalidCollections),
		errors.Is(err, stac.ErrUnknownCollection):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &serr) && serr.Code >= 400 && serr.Code < 500:
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
