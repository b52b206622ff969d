// Package invalidation describes upstream change events that make stored
// search snapshots stale.
package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

// Event announces that items of a collection changed. Without a bbox or
// geometry the whole collection is affected.
type Event struct {
	Version    int             `json:"version"`
	Op         string          `json:"op"`
	Provider   string          `json:"provider,omitempty"`
	Collection string          `json:"collection"`
	TS         time.Time       `json:"ts"`
	ItemID     string          `json:"item_id,omitempty"`
	BBox       []float64       `json:"bbox,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.Collection) == "" {
		return fmt.Errorf("collection is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if len(e.BBox) > 0 && len(e.Geometry) > 0 {
		return fmt.Errorf("at most one of bbox or geometry is allowed")
	}
	if len(e.BBox) > 0 {
		if len(e.BBox) != 4 {
			return fmt.Errorf("bbox must have 4 values")
		}
		w, s, east, n := e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3]
		if !(w >= -180 && w <= 180 && east >= -180 && east <= 180) {
			return fmt.Errorf("bbox longitude out of range")
		}
		if !(s >= -90 && s <= 90 && n >= -90 && n <= 90) || n < s {
			return fmt.Errorf("bbox latitude out of range")
		}
	}
	if _, _, err := e.Region(); err != nil {
		return err
	}
	return nil
}

// Region returns the affected area; ok is false when the event covers the
// whole collection.
func (e Event) Region() (geometry.Geometry, bool, error) {
	switch {
	case len(e.BBox) > 0:
		g, err := geometry.Normalize(e.BBox)
		if err != nil {
			return nil, false, fmt.Errorf("bbox: %w", err)
		}
		return g, true, nil
	case len(e.Geometry) > 0:
		g, err := geometry.FromGeoJSON(e.Geometry)
		if err != nil {
			return nil, false, fmt.Errorf("geometry: %w", err)
		}
		return g, true, nil
	}
	return nil, false, nil
}
