package spatial

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

var (
	errNoFootprint = errors.New("item has neither geometry nor bbox")
	errBadBBox     = errors.New("item bbox must have 4 or 6 values")
)

// Report summarizes one filter run.
type Report struct {
	Input       int `json:"input"`
	Matched     int `json:"matched"`
	Skipped     int `json:"skipped"` // malformed footprints
	NoFootprint int `json:"no_footprint"`
	// ID of each skipped item, in input order
	SkippedIDs []string `json:"skipped_ids,omitempty"`
}

// Filter keeps the items whose footprint intersects the query geometry. The
// query is normalized once; a bad query fails the whole call with a
// *geometry.Error. Items with malformed footprints are skipped and counted.
// The result is a new slice and preserves input order.
func Filter(items []model.Item, query any) ([]model.Item, Report, error) {
	q, err := geometry.Normalize(query)
	if err != nil {
		return nil, Report{}, fmt.Errorf("filter: %w", err)
	}
	out, rep := FilterNormalized(items, q)
	return out, rep, nil
}

func FilterNormalized(items []model.Item, q geometry.Geometry) ([]model.Item, Report) {
	rep := Report{Input: len(items)}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		fp, err := Footprint(it)
		if err != nil {
			if errors.Is(err, errNoFootprint) {
				rep.NoFootprint++
			} else {
				rep.Skipped++
				rep.SkippedIDs = append(rep.SkippedIDs, it.ID)
			}
			continue
		}
		if Intersects(q, fp) {
			out = append(out, it)
		}
	}
	rep.Matched = len(out)
	return out, rep
}

// Footprint returns the spatial extent used for intersection: the geometry
// when present, otherwise the bbox.
func Footprint(it model.Item) (geometry.Geometry, error) {
	if it.HasGeometry() {
		g, err := geometry.FromGeoJSON(it.Geometry)
		if err != nil {
			return nil, fmt.Errorf("item %q geometry: %w", it.ID, err)
		}
		return g, nil
	}
	if len(it.BBox) == 0 {
		return nil, errNoFootprint
	}
	bb, ok := it.Footprint2D()
	if !ok {
		return nil, fmt.Errorf("item %q: %w", it.ID, errBadBBox)
	}
	return geometry.Normalize(bb)
}
