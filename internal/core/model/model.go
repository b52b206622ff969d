// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BBox is a west,south,east,north box in EPSG:4326.
type BBox struct {
	West, South float64
	East, North float64
}

// String representation matching the STAC bbox query format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.West, b.South, b.East, b.North)
}

func (b BBox) Slice() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

type Link struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Type   string          `json:"type,omitempty"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Merge  bool            `json:"merge,omitempty"`
}

// Item is a single STAC item record. Items are owned by the result that
// produced them and are treated as read-only everywhere else.
type Item struct {
	Type       string                     `json:"type,omitempty"`
	ID         string                     `json:"id"`
	Collection string                     `json:"collection,omitempty"`
	Geometry   json.RawMessage            `json:"geometry,omitempty"`
	BBox       []float64                  `json:"bbox,omitempty"`
	Properties map[string]any             `json:"properties,omitempty"`
	Assets     map[string]json.RawMessage `json:"assets,omitempty"`
	Links      []Link                     `json:"links,omitempty"`
}

// HasGeometry reports whether the item carries a non-null geometry member.
func (it Item) HasGeometry() bool {
	g := strings.TrimSpace(string(it.Geometry))
	return g != "" && g != "null"
}

// Footprint2D returns the 2D bbox of the item, reducing 3D bboxes.
func (it Item) Footprint2D() (BBox, bool) {
	switch len(it.BBox) {
	case 4:
		return BBox{West: it.BBox[0], South: it.BBox[1], East: it.BBox[2], North: it.BBox[3]}, true
	case 6:
		return BBox{West: it.BBox[0], South: it.BBox[1], East: it.BBox[3], North: it.BBox[4]}, true
	default:
		return BBox{}, false
	}
}

// Datetime returns the acquisition timestamp from properties.datetime.
func (it Item) Datetime() (time.Time, bool) {
	raw, ok := it.Properties["datetime"].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// SearchParams is the provider-neutral STAC search request.
type SearchParams struct {
	Collections []string        `json:"collections,omitempty"`
	BBox        []float64       `json:"bbox,omitempty"`
	Intersects  json.RawMessage `json:"intersects,omitempty"`
	Datetime    string          `json:"datetime,omitempty"`
	Query       map[string]any  `json:"query,omitempty"`
	IDs         []string        `json:"ids,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Token       string          `json:"token,omitempty"`
}

// Clone returns a deep enough copy for callers to narrow without touching the original.
func (p SearchParams) Clone() SearchParams {
	out := p
	if p.Collections != nil {
		out.Collections = append([]string(nil), p.Collections...)
	}
	if p.BBox != nil {
		out.BBox = append([]float64(nil), p.BBox...)
	}
	if p.IDs != nil {
		out.IDs = append([]string(nil), p.IDs...)
	}
	if p.Intersects != nil {
		out.Intersects = append(json.RawMessage(nil), p.Intersects...)
	}
	if p.Query != nil {
		out.Query = make(map[string]any, len(p.Query))
		for k, v := range p.Query {
			out.Query[k] = v
		}
	}
	return out
}

// FeatureCollection is the wire shape of a STAC ItemCollection.
type FeatureCollection struct {
	Type           string `json:"type"`
	Features       []Item `json:"features"`
	Links          []Link `json:"links,omitempty"`
	NumberMatched  *int   `json:"numberMatched,omitempty"`
	NumberReturned *int   `json:"numberReturned,omitempty"`
	Context        *struct {
		Matched  *int `json:"matched,omitempty"`
		Returned int  `json:"returned,omitempty"`
		Limit    int  `json:"limit,omitempty"`
	} `json:"context,omitempty"`
}

// Matched returns numberMatched, falling back to the context extension.
func (fc FeatureCollection) Matched() *int {
	if fc.NumberMatched != nil {
		return fc.NumberMatched
	}
	if fc.Context != nil && fc.Context.Matched != nil {
		return fc.Context.Matched
	}
	return nil
}

// Next returns the rel=next link, if any.
func (fc FeatureCollection) Next() (Link, bool) {
	for _, l := range fc.Links {
		if l.Rel == "next" && l.Href != "" {
			return l, true
		}
	}
	return Link{}, false
}
