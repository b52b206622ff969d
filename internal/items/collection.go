// Package items holds an ordered, read-only set of STAC items together with
// the provider that produced them.
package items

import (
	"iter"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/spatial"
)

type Collection struct {
	provider string
	items    []model.Item
}

// New copies items into a collection.
func New(provider string, items []model.Item) *Collection {
	return &Collection{provider: provider, items: append([]model.Item(nil), items...)}
}

func (c *Collection) Provider() string { return c.provider }

func (c *Collection) Len() int { return len(c.items) }

// At returns the i-th item; it panics when i is out of range like a slice index.
func (c *Collection) At(i int) model.Item { return c.items[i] }

// Items returns a copy of the underlying slice.
func (c *Collection) Items() []model.Item {
	return append([]model.Item(nil), c.items...)
}

// All yields items in order.
func (c *Collection) All() iter.Seq2[int, model.Item] {
	return func(yield func(int, model.Item) bool) {
		for i, it := range c.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// IDs returns the unique item ids in first-seen order. Items without an
// id are skipped.
func (c *Collection) IDs() []string {
	seen := make(map[string]struct{}, len(c.items))
	out := make([]string, 0, len(c.items))
	for _, it := range c.items {
		if it.ID == "" {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it.ID)
	}
	return out
}

// FilterByGeometry returns a new collection with the items intersecting
// query. The receiver is not modified.
func (c *Collection) FilterByGeometry(query any) (*Collection, spatial.Report, error) {
	kept, rep, err := spatial.Filter(c.items, query)
	if err != nil {
		return nil, rep, err
	}
	return &Collection{provider: c.provider, items: kept}, rep, nil
}

// FeatureCollection renders the collection in STAC ItemCollection shape.
func (c *Collection) FeatureCollection() model.FeatureCollection {
	n := len(c.items)
	feats := c.Items()
	if feats == nil {
		feats = []model.Item{}
	}
	return model.FeatureCollection{
		Type:           "FeatureCollection",
		Features:       feats,
		NumberReturned: &n,
	}
}
