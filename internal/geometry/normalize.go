package geometry

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

// Normalize converts an accepted geometry input into its canonical form.
//
// Accepted inputs, first matching rule wins:
//   - 4 numbers: BBox (west, south, east, north), degenerate boxes pass through
//   - 2 numbers: Point
//   - two [x,y] points: BBox spanned by the diagonal corners
//   - three or more [x,y] points: Polygon, closed if needed
//   - GeoJSON geometry as map, raw JSON bytes or JSON text
//   - WKT text
//   - go-geom geometries, model.BBox and the canonical types themselves
//
// Anything else, including nil and bare scalars, fails with *Error.
func Normalize(input any) (Geometry, error) {
	switch v := input.(type) {
	case nil:
		return nil, newError(ErrUnsupportedType, input, "got nil")
	case Point:
		return validPoint(v.X, v.Y, input)
	case BBox:
		return validBBox(v, input)
	case Polygon:
		return polygonFrom(v.Ring, input)
	case Multi:
		return multiFrom(v.Parts, input)
	case model.BBox:
		return validBBox(BBox{West: v.West, South: v.South, East: v.East, North: v.North}, input)
	case float64, float32, int, int32, int64, json.Number:
		return nil, newError(ErrInsufficientDims, input, "single scalar value")
	case string:
		return fromText(v)
	case []byte:
		return FromGeoJSON(v)
	case json.RawMessage:
		return FromGeoJSON(v)
	case map[string]any:
		return fromMap(v)
	case []float64:
		return fromNumbers(v, input)
	case [4]float64:
		return fromNumbers(v[:], input)
	case [2]float64:
		return fromNumbers(v[:], input)
	case []int:
		nums := make([]float64, len(v))
		for i, n := range v {
			nums[i] = float64(n)
		}
		return fromNumbers(nums, input)
	case []Coord:
		return fromCoords(v, input)
	case [][2]float64:
		cs := make([]Coord, len(v))
		for i, p := range v {
			cs[i] = Coord{X: p[0], Y: p[1]}
		}
		return fromCoords(cs, input)
	case [][]float64:
		cs, err := pairsToCoords(v, input)
		if err != nil {
			return nil, err
		}
		return fromCoords(cs, input)
	case []any:
		return fromAnySlice(v)
	case geom.T:
		return FromGeom(v)
	}
	return nil, newError(ErrUnsupportedType, input, "cannot interpret %T", input)
}

func fromNumbers(nums []float64, input any) (Geometry, error) {
	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, newError(ErrInvalidCoordinate, input, "non-finite value")
		}
	}
	switch len(nums) {
	case 4:
		return BBox{West: nums[0], South: nums[1], East: nums[2], North: nums[3]}, nil
	case 2:
		return Point{X: nums[0], Y: nums[1]}, nil
	case 0:
		return nil, newError(ErrInsufficientDims, input, "empty coordinate sequence")
	default:
		return nil, newError(ErrInsufficientDims, input, "expected 2 or 4 numbers, got %d", len(nums))
	}
}

func fromCoords(cs []Coord, input any) (Geometry, error) {
	for _, c := range cs {
		if !finite(c.X) || !finite(c.Y) {
			return nil, newError(ErrInvalidCoordinate, input, "non-finite coordinate")
		}
	}
	switch {
	case len(cs) == 0:
		return nil, newError(ErrInsufficientDims, input, "empty point sequence")
	case len(cs) == 1:
		return nil, newError(ErrInsufficientDims, input, "a single point inside a sequence")
	case len(cs) == 2:
		a, b := cs[0], cs[1]
		return BBox{
			West:  math.Min(a.X, b.X),
			South: math.Min(a.Y, b.Y),
			East:  math.Max(a.X, b.X),
			North: math.Max(a.Y, b.Y),
		}, nil
	default:
		return polygonFrom(cs, input)
	}
}

// []any is what encoding/json produces for arrays, so it may hold either
// numbers or point pairs.
func fromAnySlice(v []any) (Geometry, error) {
	if len(v) == 0 {
		return nil, newError(ErrInsufficientDims, v, "empty coordinate sequence")
	}
	if _, ok := toFloat(v[0]); ok {
		nums := make([]float64, len(v))
		for i, e := range v {
			f, ok := toFloat(e)
			if !ok {
				return nil, newError(ErrInvalidCoordinate, v, "element %d is %T, want number", i, e)
			}
			nums[i] = f
		}
		return fromNumbers(nums, v)
	}
	cs := make([]Coord, len(v))
	for i, e := range v {
		c, ok := toCoord(e)
		if !ok {
			return nil, newError(ErrInvalidCoordinate, v, "element %d is not an [x,y] pair", i)
		}
		cs[i] = c
	}
	return fromCoords(cs, v)
}

func pairsToCoords(v [][]float64, input any) ([]Coord, error) {
	cs := make([]Coord, len(v))
	for i, p := range v {
		if len(p) != 2 {
			return nil, newError(ErrInvalidCoordinate, input, "point %d has %d values, want 2", i, len(p))
		}
		cs[i] = Coord{X: p[0], Y: p[1]}
	}
	return cs, nil
}

func toCoord(e any) (Coord, bool) {
	switch p := e.(type) {
	case []float64:
		if len(p) == 2 {
			return Coord{X: p[0], Y: p[1]}, true
		}
	case [2]float64:
		return Coord{X: p[0], Y: p[1]}, true
	case Coord:
		return p, true
	case []any:
		if len(p) != 2 {
			return Coord{}, false
		}
		x, okx := toFloat(p[0])
		y, oky := toFloat(p[1])
		return Coord{X: x, Y: y}, okx && oky
	}
	return Coord{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func validPoint(x, y float64, input any) (Geometry, error) {
	if !finite(x) || !finite(y) {
		return nil, newError(ErrInvalidCoordinate, input, "non-finite point")
	}
	return Point{X: x, Y: y}, nil
}

func validBBox(b BBox, input any) (Geometry, error) {
	if !finite(b.West) || !finite(b.South) || !finite(b.East) || !finite(b.North) {
		return nil, newError(ErrInvalidCoordinate, input, "non-finite bbox")
	}
	return b, nil
}

// builds a closed ring polygon, appending the first vertex when open
func polygonFrom(ring []Coord, input any) (Geometry, error) {
	if len(ring) < 3 {
		return nil, newError(ErrInsufficientDims, input, "polygon needs at least 3 vertices, got %d", len(ring))
	}
	out := make([]Coord, len(ring), len(ring)+1)
	copy(out, ring)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	if len(out) < 4 {
		return nil, newError(ErrInsufficientDims, input, "polygon ring has fewer than 3 distinct vertices")
	}
	return Polygon{Ring: out}, nil
}

func multiFrom(parts []Geometry, input any) (Geometry, error) {
	if len(parts) == 0 {
		return nil, newError(ErrInsufficientDims, input, "empty multi geometry")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return Multi{Parts: parts}, nil
}

func fromText(s string) (Geometry, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, newError(ErrMalformedWKT, s, "empty string")
	}
	if strings.HasPrefix(t, "{") {
		return FromGeoJSON([]byte(t))
	}
	return FromWKT(t)
}
