package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

var geoJSONTypes = map[string]struct{}{
	"Point":              {},
	"MultiPoint":         {},
	"LineString":         {},
	"MultiLineString":    {},
	"Polygon":            {},
	"MultiPolygon":       {},
	"GeometryCollection": {},
}

// FromWKT parses Well-Known Text.
func FromWKT(s string) (Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, &Error{Input: describe(s), Reason: err.Error(), Err: ErrMalformedWKT}
	}
	return FromGeom(g)
}

// FromGeoJSON decodes a GeoJSON geometry object. A Feature is unwrapped to
// its geometry member.
func FromGeoJSON(raw []byte) (Geometry, error) {
	trim := bytes.TrimSpace(raw)
	if len(trim) == 0 || bytes.Equal(trim, []byte("null")) {
		return nil, newError(ErrUnsupportedType, nil, "empty GeoJSON")
	}
	var hdr struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(trim, &hdr); err != nil {
		return nil, &Error{Input: "json", Reason: err.Error(), Err: ErrMalformedGeoJSON}
	}
	typ := strings.TrimSpace(hdr.Type)
	if typ == "Feature" {
		return FromGeoJSON(hdr.Geometry)
	}
	if _, ok := geoJSONTypes[typ]; !ok {
		return nil, &Error{Input: "json", Reason: fmt.Sprintf("GeoJSON type %q", typ), Err: ErrUnsupportedType}
	}
	var g geom.T
	if err := geojson.Unmarshal(trim, &g); err != nil {
		return nil, &Error{Input: "json", Reason: err.Error(), Err: ErrMalformedGeoJSON}
	}
	return FromGeom(g)
}

func fromMap(m map[string]any) (Geometry, error) {
	typ, _ := m["type"].(string)
	if typ == "" {
		return nil, newError(ErrUnsupportedType, m, "mapping without \"type\"")
	}
	if typ != "Feature" && typ != "GeometryCollection" {
		if _, ok := m["coordinates"]; !ok {
			return nil, newError(ErrMalformedGeoJSON, m, "%s without \"coordinates\"", typ)
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, &Error{Input: describe(m), Reason: err.Error(), Err: ErrMalformedGeoJSON}
	}
	return FromGeoJSON(raw)
}

// FromGeom adapts go-geom geometries. Line geometries have no area in the
// canonical set and are represented by their envelope.
func FromGeom(g geom.T) (Geometry, error) {
	if isNilGeom(g) {
		return nil, newError(ErrUnsupportedType, g, "nil geometry")
	}
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) < 2 {
			return nil, newError(ErrInsufficientDims, g, "empty point")
		}
		return validPoint(t.X(), t.Y(), g)
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, newError(ErrInsufficientDims, g, "empty polygon")
		}
		return polygonFrom(toCoords(t.LinearRing(0).Coords()), g)
	case *geom.LinearRing:
		return polygonFrom(toCoords(t.Coords()), g)
	case *geom.MultiPolygon:
		parts := make([]Geometry, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := FromGeom(t.Polygon(i))
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return multiFrom(parts, g)
	case *geom.MultiPoint:
		parts := make([]Geometry, 0, t.NumPoints())
		for i := 0; i < t.NumPoints(); i++ {
			p, err := FromGeom(t.Point(i))
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return multiFrom(parts, g)
	case *geom.LineString, *geom.MultiLineString:
		cs := flatToCoords(g.FlatCoords(), g.Stride())
		if len(cs) == 0 {
			return nil, newError(ErrInsufficientDims, g, "empty line")
		}
		env := envelopeOf(cs)
		if env.West == env.East && env.South == env.North {
			return Point{X: env.West, Y: env.South}, nil
		}
		return env, nil
	case *geom.GeometryCollection:
		parts := make([]Geometry, 0, t.NumGeoms())
		for _, sub := range t.Geoms() {
			p, err := FromGeom(sub)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return multiFrom(parts, g)
	}
	return nil, newError(ErrUnsupportedType, g, "go-geom %T", g)
}

// isNilGeom catches both a nil interface and a typed nil pointer.
func isNilGeom(g geom.T) bool {
	switch t := g.(type) {
	case nil:
		return true
	case *geom.Point:
		return t == nil
	case *geom.LineString:
		return t == nil
	case *geom.LinearRing:
		return t == nil
	case *geom.Polygon:
		return t == nil
	case *geom.MultiPoint:
		return t == nil
	case *geom.MultiLineString:
		return t == nil
	case *geom.MultiPolygon:
		return t == nil
	case *geom.GeometryCollection:
		return t == nil
	}
	return false
}

// ToGeom converts a canonical geometry back to go-geom, e.g. for encoding.
func ToGeom(g Geometry) (geom.T, error) {
	switch t := g.(type) {
	case Point:
		return geom.NewPointFlat(geom.XY, []float64{t.X, t.Y}), nil
	case BBox:
		return geom.NewPolygonFlat(geom.XY, ringFlat(t.Ring()), []int{10}), nil
	case Polygon:
		flat := ringFlat(t.Ring)
		return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}), nil
	case Multi:
		gc := geom.NewGeometryCollection()
		for _, p := range t.Parts {
			sub, err := ToGeom(p)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(sub); err != nil {
				return nil, fmt.Errorf("push part: %w", err)
			}
		}
		return gc, nil
	}
	return nil, newError(ErrUnsupportedType, g, "cannot convert %T", g)
}

// MarshalGeoJSON encodes a canonical geometry as a GeoJSON geometry object.
func MarshalGeoJSON(g Geometry) ([]byte, error) {
	gg, err := ToGeom(g)
	if err != nil {
		return nil, err
	}
	b, err := geojson.Marshal(gg)
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return b, nil
}

func toCoords(cs []geom.Coord) []Coord {
	out := make([]Coord, 0, len(cs))
	for _, c := range cs {
		if len(c) < 2 {
			continue
		}
		out = append(out, Coord{X: c[0], Y: c[1]})
	}
	return out
}

func flatToCoords(flat []float64, stride int) []Coord {
	if stride < 2 {
		return nil
	}
	out := make([]Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, Coord{X: flat[i], Y: flat[i+1]})
	}
	return out
}

func ringFlat(ring []Coord) []float64 {
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c.X, c.Y)
	}
	return flat
}
