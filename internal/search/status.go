package search

import (
	"maps"
	"time"
)

type Tier string

const (
	TierDirect    Tier = "direct"
	TierPaginated Tier = "paginated"
	TierChunked   Tier = "chunked"
)

type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
	// returned fewer items than the direct page
	OutcomeRegressed Outcome = "regressed"
	OutcomeSucceeded Outcome = "succeeded"
)

// Truncation signals, strongest first.
const (
	SignalNextPage = "next_page"
	SignalMatched  = "matched_exceeds_page"
	SignalPageSize = "page_size"
)

type TierReport struct {
	Tier     Tier          `json:"tier"`
	Outcome  Outcome       `json:"outcome"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Status is the diagnostic view of a Search. It is populated whether or not
// verbose logging is on.
type Status struct {
	Provider  string `json:"provider"`
	Resolved  bool   `json:"resolved"`
	Complete  bool   `json:"complete"`
	Truncated bool   `json:"truncated"`
	Signal    string `json:"signal,omitempty"`
	// true once a fallback tier filled the cache
	AllItemsCached bool           `json:"all_items_cached"`
	ResolvedTier   Tier           `json:"resolved_tier,omitempty"`
	OriginalCount  int            `json:"original_items_count"`
	CachedCount    *int           `json:"cached_items_count"`
	Tiers          []TierReport   `json:"tiers"`
	Meta           map[string]int `json:"cache_metadata,omitempty"`
}

// Attempted reports whether tier ran or was considered.
func (s Status) Attempted(t Tier) bool {
	for _, r := range s.Tiers {
		if r.Tier == t && r.Outcome != OutcomeSkipped {
			return true
		}
	}
	return false
}

// FallbackAttempted reports whether any tier beyond the direct page ran.
func (s Status) FallbackAttempted() bool {
	return s.Attempted(TierPaginated) || s.Attempted(TierChunked)
}

func (s Status) clone() Status {
	out := s
	out.Tiers = append([]TierReport(nil), s.Tiers...)
	if s.CachedCount != nil {
		n := *s.CachedCount
		out.CachedCount = &n
	}
	out.Meta = maps.Clone(s.Meta)
	return out
}
