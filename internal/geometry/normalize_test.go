package geometry

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

func TestNormalize_AcceptedShapes(t *testing.T) {
	square := []Coord{{-122.5, 47.5}, {-122.0, 47.5}, {-122.0, 48.0}, {-122.5, 48.0}, {-122.5, 47.5}}

	tests := []struct {
		name string
		in   any
		want Geometry
	}{
		{"bbox floats", []float64{-122.5, 47.5, -122.0, 48.0}, BBox{-122.5, 47.5, -122.0, 48.0}},
		{"bbox array", [4]float64{1, 2, 3, 4}, BBox{1, 2, 3, 4}},
		{"bbox any", []any{-122.5, 47.5, -122.0, 48.0}, BBox{-122.5, 47.5, -122.0, 48.0}},
		{"bbox ints", []int{1, 2, 3, 4}, BBox{1, 2, 3, 4}},
		{"point", []float64{-122.3321, 47.6062}, Point{-122.3321, 47.6062}},
		{"diagonal points", [][]float64{{-122.5, 47.5}, {-122.0, 48.0}}, BBox{-122.5, 47.5, -122.0, 48.0}},
		{"diagonal points reversed", [][2]float64{{-122.0, 48.0}, {-122.5, 47.5}}, BBox{-122.5, 47.5, -122.0, 48.0}},
		{"diagonal any pairs", []any{[]any{-122.5, 47.5}, []any{-122.0, 48.0}}, BBox{-122.5, 47.5, -122.0, 48.0}},
		{"polygon coords closed", [][2]float64{{-122.5, 47.5}, {-122.0, 47.5}, {-122.0, 48.0}, {-122.5, 48.0}, {-122.5, 47.5}}, Polygon{Ring: square}},
		{"polygon coords open", [][]float64{{-122.5, 47.5}, {-122.0, 47.5}, {-122.0, 48.0}, {-122.5, 48.0}}, Polygon{Ring: square}},
		{"geojson point map", map[string]any{"type": "Point", "coordinates": []any{-122.3321, 47.6062}}, Point{-122.3321, 47.6062}},
		{"geojson polygon map", map[string]any{
			"type": "Polygon",
			"coordinates": []any{[]any{
				[]any{-122.5, 47.5}, []any{-122.0, 47.5}, []any{-122.0, 48.0}, []any{-122.5, 48.0}, []any{-122.5, 47.5},
			}},
		}, Polygon{Ring: square}},
		{"geojson text", `{"type":"Point","coordinates":[1,2]}`, Point{1, 2}},
		{"geojson raw", json.RawMessage(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`), Point{1, 2}},
		{"wkt point", "POINT(-122.3321 47.6062)", Point{-122.3321, 47.6062}},
		{"wkt polygon", "POLYGON((-122.5 47.5, -122.0 47.5, -122.0 48.0, -122.5 48.0, -122.5 47.5))", Polygon{Ring: square}},
		{"model bbox", model.BBox{West: 1, South: 2, East: 3, North: 4}, BBox{1, 2, 3, 4}},
		{"go-geom point", geom.NewPointFlat(geom.XY, []float64{5, 6}), Point{5, 6}},
		{"canonical passthrough", Point{7, 8}, Point{7, 8}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%v): %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
		})
	}
}

func TestNormalize_RejectedInputs(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want error
	}{
		{"nil", nil, ErrUnsupportedType},
		{"three values", []float64{-122.5, 47.5, -122.0}, ErrInsufficientDims},
		{"empty list", []any{}, ErrInsufficientDims},
		{"empty floats", []float64{}, ErrInsufficientDims},
		{"single scalar", 123.456, ErrInsufficientDims},
		{"single coord", []float64{123.456}, ErrInsufficientDims},
		{"invalid geojson type", map[string]any{"type": "InvalidType", "coordinates": []any{}}, ErrUnsupportedType},
		{"geojson missing coordinates", map[string]any{"type": "Point"}, ErrMalformedGeoJSON},
		{"invalid wkt", "INVALID WKT STRING", ErrMalformedWKT},
		{"unknown type", struct{ X int }{1}, ErrUnsupportedType},
		{"mixed pairs", []any{[]any{1.0, 2.0}, "x", []any{3.0, 4.0}}, ErrInvalidCoordinate},
		{"collapsed polygon", [][]float64{{0, 0}, {1, 1}, {0, 0}}, ErrInsufficientDims},
		{"nil multipolygon", (*geom.MultiPolygon)(nil), ErrUnsupportedType},
		{"nil linestring", (*geom.LineString)(nil), ErrUnsupportedType},
		{"nil collection", (*geom.GeometryCollection)(nil), ErrUnsupportedType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.in)
			if err == nil {
				t.Fatalf("expected error for %v", tc.in)
			}
			var gerr *Error
			if !errors.As(err, &gerr) {
				t.Fatalf("error %T is not *geometry.Error", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("error %v does not wrap %v", err, tc.want)
			}
		})
	}
}

func TestNormalize_NilMessageNamesUnsupportedType(t *testing.T) {
	_, err := Normalize(nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported geometry type") {
		t.Fatalf("want unsupported geometry type error, got %v", err)
	}
}

func TestNormalize_TwoPointsIsNotAnError(t *testing.T) {
	g, err := Normalize([][2]float64{{-122.5, 47.5}, {-122.0, 48.0}})
	if err != nil {
		t.Fatalf("two points must be a bbox, got error %v", err)
	}
	if g.Kind() != KindBBox {
		t.Fatalf("kind=%v want bbox", g.Kind())
	}
}

func TestNormalize_BBoxRoundTripIsIdempotent(t *testing.T) {
	boxes := [][]float64{
		{-122.5, 47.5, -122.0, 48.0},
		{0, 0, 1, 1},
		{10, 10, 5, 5}, // degenerate boxes pass through unchanged
		{-180, -90, 180, 90},
	}
	for _, b := range boxes {
		first, err := Normalize(b)
		if err != nil {
			t.Fatalf("Normalize(%v): %v", b, err)
		}
		bb, ok := first.(BBox)
		if !ok {
			t.Fatalf("Normalize(%v) kind=%v want bbox", b, first.Kind())
		}
		second, err := Normalize(bb.Slice())
		if err != nil {
			t.Fatalf("Normalize(Slice()): %v", err)
		}
		if first != second {
			t.Fatalf("round trip changed bbox: %v -> %v", first, second)
		}
	}
}

func TestNormalize_DegenerateBBoxAccepted(t *testing.T) {
	g, err := Normalize([]float64{5, 5, 1, 1})
	if err != nil {
		t.Fatalf("degenerate bbox should pass: %v", err)
	}
	if !g.(BBox).Degenerate() {
		t.Fatalf("expected Degenerate() for west>=east")
	}
}

func TestNormalize_MultiPolygon(t *testing.T) {
	mp := `{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[10,10],[11,10],[11,11],[10,11],[10,10]]]
	]}`
	g, err := Normalize(mp)
	if err != nil {
		t.Fatalf("Normalize multipolygon: %v", err)
	}
	m, ok := g.(Multi)
	if !ok || len(m.Parts) != 2 {
		t.Fatalf("got %#v want 2-part Multi", g)
	}
	if env := m.Envelope(); env != (BBox{0, 0, 11, 11}) {
		t.Fatalf("envelope=%v", env)
	}
}

func TestNormalize_LineStringUsesEnvelope(t *testing.T) {
	g, err := Normalize("LINESTRING(0 0, 2 3)")
	if err != nil {
		t.Fatalf("Normalize linestring: %v", err)
	}
	if g != (BBox{0, 0, 2, 3}) {
		t.Fatalf("got %#v", g)
	}
}

func TestMarshalGeoJSON_RoundTrip(t *testing.T) {
	in := Polygon{Ring: []Coord{{0, 0}, {2, 0}, {2, 2}, {0, 0}}}
	b, err := MarshalGeoJSON(in)
	if err != nil {
		t.Fatalf("MarshalGeoJSON: %v", err)
	}
	out, err := FromGeoJSON(b)
	if err != nil {
		t.Fatalf("FromGeoJSON(%s): %v", b, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %#v want %#v", out, in)
	}
}

func TestFromGeom_TypedNilPointers(t *testing.T) {
	tests := []struct {
		name string
		in   geom.T
	}{
		{"point", (*geom.Point)(nil)},
		{"linestring", (*geom.LineString)(nil)},
		{"linearring", (*geom.LinearRing)(nil)},
		{"polygon", (*geom.Polygon)(nil)},
		{"multipoint", (*geom.MultiPoint)(nil)},
		{"multilinestring", (*geom.MultiLineString)(nil)},
		{"multipolygon", (*geom.MultiPolygon)(nil)},
		{"collection", (*geom.GeometryCollection)(nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := FromGeom(tc.in)
			if err == nil {
				t.Fatalf("expected error, got %v", g)
			}
			if !errors.Is(err, ErrUnsupportedType) {
				t.Fatalf("error %v does not wrap ErrUnsupportedType", err)
			}
		})
	}
}
