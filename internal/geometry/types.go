// Package geometry normalizes heterogeneous geometry inputs into a small
// closed set of shapes: Point, BBox and Polygon, plus Multi for multi-part
// inputs whose parts are themselves in that set.
package geometry

import (
	"fmt"
	"math"
)

type Kind int

const (
	KindPoint Kind = iota
	KindBBox
	KindPolygon
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindBBox:
		return "bbox"
	case KindPolygon:
		return "polygon"
	case KindMulti:
		return "multi"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Geometry is the canonical normalized shape. The set of implementations is
// closed; external geometry types are converted at the boundary by Normalize.
type Geometry interface {
	Kind() Kind
	Envelope() BBox
	sealed()
}

type Coord struct {
	X, Y float64
}

type Point struct {
	X, Y float64
}

func (Point) Kind() Kind { return KindPoint }
func (p Point) Envelope() BBox {
	return BBox{West: p.X, South: p.Y, East: p.X, North: p.Y}
}
func (Point) sealed() {}

// BBox is west,south,east,north.
type BBox struct {
	West, South, East, North float64
}

func (BBox) Kind() Kind       { return KindBBox }
func (b BBox) Envelope() BBox { return b }
func (BBox) sealed()          {}

// Slice converts the box back to the [west, south, east, north] list form.
func (b BBox) Slice() []float64 { return []float64{b.West, b.South, b.East, b.North} }

// Degenerate reports a box with zero or negative width or height. Such boxes
// are accepted by Normalize as-is.
func (b BBox) Degenerate() bool {
	return b.West >= b.East || b.South >= b.North
}

// Ring returns the closed ring of the box corners, counter-clockwise.
func (b BBox) Ring() []Coord {
	return []Coord{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}
}

// Polygon holds a single closed outer ring (first == last).
type Polygon struct {
	Ring []Coord
}

func (Polygon) Kind() Kind { return KindPolygon }
func (p Polygon) Envelope() BBox {
	return envelopeOf(p.Ring)
}
func (Polygon) sealed() {}

type Multi struct {
	Parts []Geometry
}

func (Multi) Kind() Kind { return KindMulti }
func (m Multi) Envelope() BBox {
	if len(m.Parts) == 0 {
		return BBox{}
	}
	out := m.Parts[0].Envelope()
	for _, p := range m.Parts[1:] {
		e := p.Envelope()
		out.West = math.Min(out.West, e.West)
		out.South = math.Min(out.South, e.South)
		out.East = math.Max(out.East, e.East)
		out.North = math.Max(out.North, e.North)
	}
	return out
}
func (Multi) sealed() {}

func envelopeOf(cs []Coord) BBox {
	if len(cs) == 0 {
		return BBox{}
	}
	out := BBox{West: cs[0].X, South: cs[0].Y, East: cs[0].X, North: cs[0].Y}
	for _, c := range cs[1:] {
		out.West = math.Min(out.West, c.X)
		out.South = math.Min(out.South, c.Y)
		out.East = math.Max(out.East, c.X)
		out.North = math.Max(out.North, c.Y)
	}
	return out
}
