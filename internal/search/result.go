// Package search materializes complete STAC result sets. A direct search
// page is checked for truncation and, when truncated, re-fetched through a
// paginated client or a chunked re-query; the first tier that succeeds is
// memoized for the lifetime of the Search.
package search

import (
	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

// Result is one immutable direct search response.
type Result struct {
	provider string
	params   model.SearchParams
	items    []model.Item
	matched  *int
	hasNext  bool
	err      error
}

type ResultOption func(*Result)

// WithMatched records the total match count reported by the server.
func WithMatched(n int) ResultOption {
	return func(r *Result) { r.matched = &n }
}

// WithNextPage records whether the server advertised another page.
func WithNextPage(ok bool) ResultOption {
	return func(r *Result) { r.hasNext = ok }
}

// WithErr marks the result as failed. Failed results carry no items.
func WithErr(err error) ResultOption {
	return func(r *Result) { r.err = err }
}

func NewResult(provider string, params model.SearchParams, items []model.Item, opts ...ResultOption) *Result {
	r := &Result{
		provider: provider,
		params:   params.Clone(),
		items:    append([]model.Item(nil), items...),
	}
	for _, o := range opts {
		o(r)
	}
	if r.err != nil {
		r.items = nil
	}
	return r
}

func (r *Result) Provider() string { return r.provider }

func (r *Result) Params() model.SearchParams { return r.params.Clone() }

func (r *Result) Len() int { return len(r.items) }

// Items returns a copy of the page.
func (r *Result) Items() []model.Item { return append([]model.Item(nil), r.items...) }

// Matched returns the server-reported total, if any.
func (r *Result) Matched() (int, bool) {
	if r.matched == nil {
		return 0, false
	}
	return *r.matched, true
}

func (r *Result) HasNextPage() bool { return r.hasNext }

func (r *Result) Err() error { return r.err }
