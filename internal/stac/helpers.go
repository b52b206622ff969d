package stac

import (
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

const kmPerDegree = 111.0

// BBoxFromCenter returns a square box of bufferKm around lat/lon, using a
// flat 111 km per degree.
func BBoxFromCenter(lat, lon, bufferKm float64) model.BBox {
	d := bufferKm / kmPerDegree
	return model.BBox{West: lon - d, South: lat - d, East: lon + d, North: lat + d}
}

// PolygonGeoJSON builds a GeoJSON Polygon from [lon, lat] pairs, closing the
// ring when needed. The input slice is not modified.
func PolygonGeoJSON(coords [][2]float64) (json.RawMessage, error) {
	if len(coords) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 positions, got %d", len(coords))
	}
	ring := make([]geometry.Coord, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, geometry.Coord{X: c[0], Y: c[1]})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	b, err := geometry.MarshalGeoJSON(geometry.Polygon{Ring: ring})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
