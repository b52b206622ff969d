// Package spatial decides intersection between normalized geometries and
// filters STAC items by footprint.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/orientation"

	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

const eps = 1e-12

// Intersects reports whether a and b share any point. Boundaries count,
// except for the box-box case where two non-degenerate boxes must overlap
// with positive area.
func Intersects(a, b geometry.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	a, b = expand(a), expand(b)
	if m, ok := a.(geometry.Multi); ok {
		for _, p := range m.Parts {
			if Intersects(p, b) {
				return true
			}
		}
		return false
	}
	if m, ok := b.(geometry.Multi); ok {
		for _, p := range m.Parts {
			if Intersects(a, p) {
				return true
			}
		}
		return false
	}

	switch x := a.(type) {
	case geometry.Point:
		return pointIntersects(x, b)
	case geometry.BBox:
		switch y := b.(type) {
		case geometry.Point:
			return pointInBox(y, x)
		case geometry.BBox:
			return boxesOverlap(x, y)
		case geometry.Polygon:
			return ringsIntersect(x.Ring(), y.Ring)
		}
	case geometry.Polygon:
		switch y := b.(type) {
		case geometry.Point:
			return pointInRing(y, x.Ring)
		case geometry.BBox:
			return ringsIntersect(x.Ring, y.Ring())
		case geometry.Polygon:
			return ringsIntersect(x.Ring, y.Ring)
		}
	}
	return false
}

// Touching rewrites the boxes in g as polygons, so that two boxes meeting
// only along an edge also count as intersecting. Antimeridian boxes are
// split first.
func Touching(g geometry.Geometry) geometry.Geometry {
	switch x := expand(g).(type) {
	case geometry.BBox:
		if x.Degenerate() {
			return x
		}
		return geometry.Polygon{Ring: x.Ring()}
	case geometry.Multi:
		parts := make([]geometry.Geometry, 0, len(x.Parts))
		for _, p := range x.Parts {
			parts = append(parts, Touching(p))
		}
		return geometry.Multi{Parts: parts}
	}
	return g
}

// expand rewrites boxes that cross the antimeridian (west > east) into two
// parts and inverted-latitude boxes into an empty Multi.
func expand(g geometry.Geometry) geometry.Geometry {
	b, ok := g.(geometry.BBox)
	if !ok {
		return g
	}
	if b.South > b.North {
		return geometry.Multi{}
	}
	if b.West > b.East {
		return geometry.Multi{Parts: []geometry.Geometry{
			geometry.BBox{West: b.West, South: b.South, East: 180, North: b.North},
			geometry.BBox{West: -180, South: b.South, East: b.East, North: b.North},
		}}
	}
	return b
}

func pointIntersects(p geometry.Point, g geometry.Geometry) bool {
	switch y := g.(type) {
	case geometry.Point:
		return math.Abs(p.X-y.X) <= eps && math.Abs(p.Y-y.Y) <= eps
	case geometry.BBox:
		return pointInBox(p, y)
	case geometry.Polygon:
		return pointInRing(p, y.Ring)
	}
	return false
}

func pointInBox(p geometry.Point, b geometry.BBox) bool {
	return p.X >= b.West && p.X <= b.East && p.Y >= b.South && p.Y <= b.North
}

// strict overlap for boxes with area, inclusive when either has zero width
// or height so that point-like boxes are not lost
func boxesOverlap(a, b geometry.BBox) bool {
	if a.Degenerate() || b.Degenerate() {
		return a.West <= b.East && b.West <= a.East && a.South <= b.North && b.South <= a.North
	}
	return a.West < b.East && b.West < a.East && a.South < b.North && b.South < a.North
}

func envelopesTouch(a, b geometry.BBox) bool {
	return bounds(a).Overlaps(geom.XY, bounds(b))
}

func bounds(b geometry.BBox) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.West, b.South, b.East, b.North)
}

// ringsIntersect reports any shared point between two closed rings,
// including touching edges and full containment either way.
func ringsIntersect(r1, r2 []geometry.Coord) bool {
	if len(r1) == 0 || len(r2) == 0 {
		return false
	}
	if !envelopesTouch(ringEnvelope(r1), ringEnvelope(r2)) {
		return false
	}
	for i := 0; i+1 < len(r1); i++ {
		for j := 0; j+1 < len(r2); j++ {
			if segmentsIntersect(r1[i], r1[i+1], r2[j], r2[j+1]) {
				return true
			}
		}
	}
	if pointInRing(geometry.Point{X: r1[0].X, Y: r1[0].Y}, r2) {
		return true
	}
	return pointInRing(geometry.Point{X: r2[0].X, Y: r2[0].Y}, r1)
}

func ringEnvelope(r []geometry.Coord) geometry.BBox {
	return geometry.Polygon{Ring: r}.Envelope()
}

// pointInRing counts points on the boundary as inside.
func pointInRing(p geometry.Point, ring []geometry.Coord) bool {
	if len(ring) < 3 {
		return false
	}
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c.X, c.Y)
	}
	return xy.IsPointInRing(geom.XY, geom.Coord{p.X, p.Y}, flat)
}

func orient(o, a, b geometry.Coord) orientation.Type {
	return xy.OrientationIndex(geom.Coord{o.X, o.Y}, geom.Coord{a.X, a.Y}, geom.Coord{b.X, b.Y})
}

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(a, b, p geometry.Coord) bool {
	if orient(a, b, p) != orientation.Collinear {
		return false
	}
	return p.X >= math.Min(a.X, b.X) && p.X <= math.Max(a.X, b.X) &&
		p.Y >= math.Min(a.Y, b.Y) && p.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(p1, p2, q1, q2 geometry.Coord) bool {
	o1 := orient(p1, p2, q1)
	o2 := orient(p1, p2, q2)
	o3 := orient(q1, q2, p1)
	o4 := orient(q1, q2, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	switch {
	case o1 == orientation.Collinear && onSegment(p1, p2, q1):
		return true
	case o2 == orientation.Collinear && onSegment(p1, p2, q2):
		return true
	case o3 == orientation.Collinear && onSegment(q1, q2, p1):
		return true
	case o4 == orientation.Collinear && onSegment(q1, q2, p2):
		return true
	}
	return false
}
