package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geodata-search/internal/invalidation"
)

// itemDedupe remembers the newest applied event time per item so that
// replayed or reordered events for the same item are not applied twice.
type itemDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newItemDedupe(size int) *itemDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &itemDedupe{lru: c}
}

func dedupeKey(ev invalidation.Event) (string, bool) {
	if ev.ItemID == "" {
		return "", false
	}
	return ev.Provider + "|" + ev.Collection + "|" + ev.ItemID, true
}

// stale reports whether an event at least as new was already applied.
func (d *itemDedupe) stale(ev invalidation.Event) bool {
	k, ok := dedupeKey(ev)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, seen := d.lru.Get(k)
	return seen && ev.TS.UnixNano() <= last
}

func (d *itemDedupe) applied(ev invalidation.Event) {
	k, ok := dedupeKey(ev)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, seen := d.lru.Get(k); seen && last >= ev.TS.UnixNano() {
		return
	}
	d.lru.Add(k, ev.TS.UnixNano())
}
