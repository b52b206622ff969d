package search

import (
	"maps"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

// Metadata keys recorded next to a cached entry.
const (
	MetaPaginatedMatched = "paginated_matched"
	MetaChunkedMatched   = "chunked_matched"
	MetaResolvedTotal    = "resolved_total"
)

// Entry is a resolved item set and the tier that produced it.
type Entry struct {
	Items []model.Item
	Tier  Tier
	Meta  map[string]int
}

// Cache memoizes resolved entries by key. Entries are set once and never
// expire; a Cache is owned by a single Search and is not safe for concurrent
// use.
type Cache struct {
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// GetOrCompute returns the entry for key, running compute only when the key
// has never been filled.
func (c *Cache) GetOrCompute(key string, compute func() Entry) Entry {
	if e, ok := c.entries[key]; ok {
		return e
	}
	e := compute()
	c.Fill(key, e)
	return c.entries[key]
}

// Fill stores e under key unless the key is already filled. It reports
// whether the entry was stored.
func (c *Cache) Fill(key string, e Entry) bool {
	if _, ok := c.entries[key]; ok {
		return false
	}
	e.Items = append([]model.Item(nil), e.Items...)
	e.Meta = maps.Clone(e.Meta)
	c.entries[key] = e
	return true
}

func (c *Cache) Lookup(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Tier returns the tier that filled key.
func (c *Cache) Tier(key string) (Tier, bool) {
	e, ok := c.entries[key]
	return e.Tier, ok
}

// Meta returns a copy of the metadata stored for key.
func (c *Cache) Meta(key string) map[string]int {
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	return maps.Clone(e.Meta)
}
