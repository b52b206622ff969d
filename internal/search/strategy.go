package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/cache/keys"
	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/items"
	mylog "github.com/mohammed-shakir/geodata-search/internal/logger"
)

// DefaultPageSize is the page length that, absent explicit signals, marks a
// direct page as possibly truncated.
const DefaultPageSize = 100

// Paginator follows server pagination for the same logical query.
type Paginator interface {
	FetchAll(ctx context.Context, params model.SearchParams) ([]model.Item, error)
}

// Chunker re-issues the query as narrower direct searches.
type Chunker interface {
	FetchChunked(ctx context.Context, params model.SearchParams) ([]model.Item, error)
}

type PaginatorFunc func(ctx context.Context, params model.SearchParams) ([]model.Item, error)

func (f PaginatorFunc) FetchAll(ctx context.Context, p model.SearchParams) ([]model.Item, error) {
	return f(ctx, p)
}

type ChunkerFunc func(ctx context.Context, params model.SearchParams) ([]model.Item, error)

func (f ChunkerFunc) FetchChunked(ctx context.Context, p model.SearchParams) ([]model.Item, error) {
	return f(ctx, p)
}

// Observer receives tier outcomes, e.g. for metrics.
type Observer interface {
	ObserveTier(provider string, tier Tier, outcome Outcome, items int, d time.Duration)
	ObserveResolved(provider string, tier Tier, items int)
}

type Option func(*Search)

func WithPaginator(p Paginator) Option { return func(s *Search) { s.paginator = p } }

func WithChunker(c Chunker) Option { return func(s *Search) { s.chunker = c } }

func WithPageSize(n int) Option {
	return func(s *Search) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithComplete marks the direct page as already holding every item.
func WithComplete() Option { return func(s *Search) { s.complete = true } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Search) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVerbose logs tier escalation at info instead of debug.
func WithVerbose(v bool) Option { return func(s *Search) { s.verbose = v } }

func WithObserver(o Observer) Option { return func(s *Search) { s.observer = o } }

// Search wraps a direct result and resolves the complete item set on first
// use. It is meant to be used from one goroutine.
type Search struct {
	direct    *Result
	paginator Paginator
	chunker   Chunker
	pageSize  int
	complete  bool
	verbose   bool
	log       *slog.Logger
	observer  Observer

	cache  *Cache
	key    string
	status Status
}

func New(direct *Result, opts ...Option) *Search {
	if direct == nil {
		direct = NewResult("", model.SearchParams{}, nil)
	}
	s := &Search{
		direct:   direct,
		pageSize: DefaultPageSize,
		log:      slog.Default(),
		cache:    NewCache(),
	}
	for _, o := range opts {
		o(s)
	}
	s.key = keys.Search(direct.Provider(), direct.Params())
	s.log = s.log.With("provider", direct.Provider())
	s.status = Status{
		Provider:      direct.Provider(),
		Complete:      s.complete,
		OriginalCount: direct.Len(),
	}
	return s
}

func (s *Search) Provider() string { return s.direct.Provider() }

func (s *Search) Params() model.SearchParams { return s.direct.Params() }

// Direct returns the first page as received.
func (s *Search) Direct() *Result { return s.direct }

// Key identifies the logical query; equal for equal parameters.
func (s *Search) Key() string { return s.key }

// AllItems returns every item of the query, escalating through the fallback
// tiers on first call. It never fails: when every tier is exhausted the
// direct page is returned.
func (s *Search) AllItems(ctx context.Context) []model.Item {
	return append([]model.Item(nil), s.resolve(ctx).Items...)
}

func (s *Search) Len(ctx context.Context) int { return len(s.resolve(ctx).Items) }

// TotalItems is the size of the resolved set.
func (s *Search) TotalItems(ctx context.Context) int { return s.Len(ctx) }

// Matched returns the best known match count: fallback tier metadata first,
// then the size of a fallback-resolved set, then the server-reported total.
func (s *Search) Matched(ctx context.Context) (int, bool) {
	e := s.resolve(ctx)
	if n, ok := e.Meta[MetaPaginatedMatched]; ok {
		return n, true
	}
	if n, ok := e.Meta[MetaChunkedMatched]; ok {
		return n, true
	}
	if e.Tier != TierDirect {
		return len(e.Items), true
	}
	return s.direct.Matched()
}

// ProductIDs returns the unique item ids in first-seen order.
func (s *Search) ProductIDs(ctx context.Context) []string {
	return s.Collection(ctx).IDs()
}

// Items iterates the resolved set.
func (s *Search) Items(ctx context.Context) iter.Seq2[int, model.Item] {
	e := s.resolve(ctx)
	return func(yield func(int, model.Item) bool) {
		for i, it := range e.Items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// Collection returns the resolved set as an items.Collection.
func (s *Search) Collection(ctx context.Context) *items.Collection {
	return items.New(s.Provider(), s.resolve(ctx).Items)
}

// Status returns a snapshot of the diagnostics gathered so far.
func (s *Search) Status() Status { return s.status.clone() }

func (s *Search) String() string {
	n := s.direct.Len()
	mode := "simple"
	if e, ok := s.cache.Lookup(s.key); ok {
		n = len(e.Items)
	}
	if s.status.AllItemsCached {
		mode = "with fallback"
	}
	return fmt.Sprintf("Search(%d items found, provider=%q, %s)", n, s.Provider(), mode)
}

func (s *Search) resolve(ctx context.Context) Entry {
	return s.cache.GetOrCompute(s.key, func() Entry {
		e := s.escalate(ctx)
		s.status.Resolved = true
		s.status.ResolvedTier = e.Tier
		s.status.Meta = e.Meta
		if e.Tier != TierDirect {
			s.status.AllItemsCached = true
			n := len(e.Items)
			s.status.CachedCount = &n
		}
		if s.observer != nil {
			s.observer.ObserveResolved(s.Provider(), e.Tier, len(e.Items))
		}
		return e
	})
}

func (s *Search) escalate(ctx context.Context) Entry {
	direct := Entry{
		Items: s.direct.items,
		Tier:  TierDirect,
		Meta:  map[string]int{MetaResolvedTotal: s.direct.Len()},
	}

	truncated, signal := s.truncation()
	s.status.Truncated, s.status.Signal = truncated, signal
	if !truncated {
		s.record(TierReport{Tier: TierPaginated, Outcome: OutcomeSkipped})
		s.record(TierReport{Tier: TierChunked, Outcome: OutcomeSkipped})
		return direct
	}
	s.logf(ctx, "direct page looks truncated, escalating", "items", s.direct.Len(), "signal", signal)

	if e, ok := s.runTier(ctx, TierPaginated, s.paginate); ok {
		s.record(TierReport{Tier: TierChunked, Outcome: OutcomeSkipped})
		return e
	}
	if e, ok := s.runTier(ctx, TierChunked, s.chunk); ok {
		return e
	}

	s.logf(ctx, "fallback tiers exhausted, keeping direct page", "items", s.direct.Len())
	return direct
}

func (s *Search) truncation() (bool, string) {
	if s.complete || s.direct.Err() != nil {
		return false, ""
	}
	if s.direct.HasNextPage() {
		return true, SignalNextPage
	}
	if m, ok := s.direct.Matched(); ok {
		if m > s.direct.Len() {
			return true, SignalMatched
		}
		return false, ""
	}
	if s.direct.Len() == s.pageSize {
		return true, SignalPageSize
	}
	return false, ""
}

type tierFunc func(ctx context.Context, params model.SearchParams) ([]model.Item, error)

func (s *Search) runTier(ctx context.Context, tier Tier, fetch tierFunc) (Entry, bool) {
	ctx = mylog.WithTier(ctx, string(tier))
	start := time.Now()
	got, err := fetch(ctx, s.direct.Params())
	rep := TierReport{Tier: tier, Items: len(got), Duration: time.Since(start)}

	switch {
	case err != nil:
		rep.Outcome = OutcomeFailed
		var tu *TierUnavailableError
		if errors.As(err, &tu) {
			rep.Outcome = OutcomeUnavailable
		} else {
			err = &TierUnavailableError{Tier: tier, Err: err}
		}
		rep.Err, rep.Error = err, err.Error()
		rep.Items = 0
	case len(got) < s.direct.Len():
		rep.Outcome = OutcomeRegressed
	default:
		rep.Outcome = OutcomeSucceeded
	}
	s.record(rep)
	s.logf(ctx, "fallback tier finished", "tier", tier, "outcome", rep.Outcome, "items", rep.Items, "duration", rep.Duration, "err", err)

	if rep.Outcome != OutcomeSucceeded {
		return Entry{}, false
	}
	meta := map[string]int{MetaResolvedTotal: len(got)}
	switch tier {
	case TierPaginated:
		meta[MetaPaginatedMatched] = len(got)
	case TierChunked:
		meta[MetaChunkedMatched] = len(got)
	}
	return Entry{Items: got, Tier: tier, Meta: meta}, true
}

func (s *Search) paginate(ctx context.Context, p model.SearchParams) ([]model.Item, error) {
	if s.paginator == nil {
		return nil, &TierUnavailableError{Tier: TierPaginated, Err: ErrNoCollaborator}
	}
	return s.paginator.FetchAll(ctx, p)
}

func (s *Search) chunk(ctx context.Context, p model.SearchParams) ([]model.Item, error) {
	if s.chunker == nil {
		return nil, &TierUnavailableError{Tier: TierChunked, Err: ErrNoCollaborator}
	}
	got, err := s.chunker.FetchChunked(ctx, p)
	if err != nil {
		return nil, err
	}
	return dedupByID(got), nil
}

func (s *Search) record(r TierReport) {
	s.status.Tiers = append(s.status.Tiers, r)
	if s.observer != nil {
		s.observer.ObserveTier(s.Provider(), r.Tier, r.Outcome, r.Items, r.Duration)
	}
}

func (s *Search) logf(ctx context.Context, msg string, args ...any) {
	lvl := slog.LevelDebug
	if s.verbose {
		lvl = slog.LevelInfo
	}
	s.log.Log(ctx, lvl, msg, args...)
}

// dedupByID keeps the first occurrence of each id. Items without an id are
// kept as-is.
func dedupByID(in []model.Item) []model.Item {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Item, 0, len(in))
	for _, it := range in {
		if it.ID != "" {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}
