package items

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type NullsPolicy int

const (
	NullsLast NullsPolicy = iota
	NullsFirst
)

// SortKey orders items by one field: "id", "collection" or an item
// property, with or without the "properties." prefix.
type SortKey struct {
	Field     string
	Direction Direction
	Nulls     NullsPolicy
}

// ParseSortBy reads the STAC sortby form "-datetime,+eo:cloud_cover,id".
func ParseSortBy(s string) ([]SortKey, error) {
	var out []SortKey
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := SortKey{}
		switch part[0] {
		case '-':
			k.Direction = Desc
			part = part[1:]
		case '+':
			part = part[1:]
		}
		k.Field = strings.TrimPrefix(strings.TrimSpace(part), "properties.")
		if k.Field == "" {
			return nil, errors.New("sortby: empty field")
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, errors.New("sortby: no fields")
	}
	return out, nil
}

func (k SortKey) String() string {
	if k.Direction == Desc {
		return "-" + k.Field
	}
	return "+" + k.Field
}

// Sorted returns a copy ordered by keys. The sort is stable so ties keep
// their fetch order.
func (c *Collection) Sorted(keys []SortKey) *Collection {
	out := c.Items()
	if len(keys) == 0 {
		return &Collection{provider: c.provider, items: out}
	}
	tuples := make([][]cmpValue, len(out))
	idx := make([]int, len(out))
	for i, it := range out {
		idx[i] = i
		tuples[i] = sortTuple(it, keys)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return compareTuples(tuples[a], tuples[b], keys)
	})
	sorted := make([]model.Item, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return &Collection{provider: c.provider, items: sorted}
}

type cmpKind int

const (
	kindNull cmpKind = iota
	kindNumber
	kindTime
	kindString
)

type cmpValue struct {
	kind cmpKind
	n    float64
	t    time.Time
	s    string
}

func sortTuple(it model.Item, keys []SortKey) []cmpValue {
	out := make([]cmpValue, len(keys))
	for i, k := range keys {
		var v any
		switch k.Field {
		case "id":
			v = it.ID
		case "collection":
			v = it.Collection
		default:
			v = it.Properties[k.Field]
		}
		out[i] = coerce(v)
	}
	return out
}

func coerce(v any) cmpValue {
	switch t := v.(type) {
	case nil:
		return cmpValue{kind: kindNull}
	case float64:
		return cmpValue{kind: kindNumber, n: t}
	case int:
		return cmpValue{kind: kindNumber, n: float64(t)}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return cmpValue{kind: kindTime, t: ts}
		}
		return cmpValue{kind: kindString, s: t}
	}
	return cmpValue{kind: kindString, s: fmt.Sprintf("%v", v)}
}

func compareTuples(a, b []cmpValue, keys []SortKey) int {
	for i := range keys {
		dir := 1
		if keys[i].Direction == Desc {
			dir = -1
		}
		an, bn := a[i].kind == kindNull, b[i].kind == kindNull
		if an != bn {
			if (keys[i].Nulls == NullsFirst) == an {
				return -1
			}
			return 1
		}
		if an {
			continue
		}
		// mixed kinds compare by kind so the order stays total
		if a[i].kind != b[i].kind {
			return cmp.Compare(a[i].kind, b[i].kind) * dir
		}
		var c int
		switch a[i].kind {
		case kindNumber:
			c = cmp.Compare(a[i].n, b[i].n)
		case kindTime:
			c = a[i].t.Compare(b[i].t)
		default:
			c = strings.Compare(a[i].s, b[i].s)
		}
		if c != 0 {
			return c * dir
		}
	}
	return 0
}
