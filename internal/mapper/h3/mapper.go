package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// average hexagon edge length in km per resolution
var edgeKm = [16]float64{
	1281.256011, 483.0568391, 182.5129565, 68.97922179,
	26.07175968, 9.854090990, 3.724532667, 1.406475763,
	0.531414010, 0.200786148, 0.075863783, 0.028663897,
	0.010830188, 0.004092010, 0.001546100, 0.000584169,
}

const kmPerDegree = 111.32

// CellsForBBox returns the cells whose centers fall inside bb.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	// Build a rectangular loop (lon,lat in EPSG:4326). v4 wants degrees.
	outer := h3.GeoLoop{
		{Lat: bb.South, Lng: bb.West},
		{Lat: bb.South, Lng: bb.East},
		{Lat: bb.North, Lng: bb.East},
		{Lat: bb.North, Lng: bb.West},
	}
	return polyfillOne(outer, nil, res)
}

// CoverBBox returns every cell that may intersect bb. The box is grown by
// twice the edge length before polyfill, so cells straddling the border are
// included even when their center lies outside.
func (m *Mapper) CoverBBox(bb model.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if bb.West >= bb.East || bb.South >= bb.North {
		return nil, fmt.Errorf("cover bbox %s: empty or antimeridian-crossing box", bb)
	}
	dLat := 2 * edgeKm[res] / kmPerDegree
	maxLat := math.Min(89, math.Max(math.Abs(bb.South), math.Abs(bb.North))+dLat)
	dLng := 2 * edgeKm[res] / (kmPerDegree * math.Cos(maxLat*math.Pi/180))

	grown := model.BBox{
		West:  math.Max(-180, bb.West-dLng),
		South: math.Max(-90, bb.South-dLat),
		East:  math.Min(180, bb.East+dLng),
		North: math.Min(90, bb.North+dLat),
	}
	cells, err := m.CellsForBBox(grown, res)
	if err != nil {
		return nil, err
	}

	out := cells[:0]
	for _, c := range cells {
		cb, err := m.CellBounds(c)
		if err != nil {
			return nil, err
		}
		if cb.West <= bb.East && bb.West <= cb.East && cb.South <= bb.North && bb.South <= cb.North {
			out = append(out, c)
		}
	}
	return out, nil
}

// CellsForPolygon returns the cells whose centers fall inside the ring.
func (m *Mapper) CellsForPolygon(poly geometry.Polygon, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := toLoop(poly.Ring)
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 distinct vertices")
	}
	return polyfillOne(outer, nil, res)
}

// CellBounds returns the lon/lat envelope of a cell.
func (m *Mapper) CellBounds(cell string) (model.BBox, error) {
	c, err := parseCell(cell)
	if err != nil {
		return model.BBox{}, err
	}
	b, err := c.Boundary()
	if err != nil {
		return model.BBox{}, fmt.Errorf("boundary: %w", err)
	}
	if len(b) < 3 {
		return model.BBox{}, fmt.Errorf("degenerate boundary for %s", cell)
	}
	out := model.BBox{West: b[0].Lng, South: b[0].Lat, East: b[0].Lng, North: b[0].Lat}
	for _, ll := range b[1:] {
		out.West = math.Min(out.West, ll.Lng)
		out.East = math.Max(out.East, ll.Lng)
		out.South = math.Min(out.South, ll.Lat)
		out.North = math.Max(out.North, ll.Lat)
	}
	return out, nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func parseCell(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

// Convert a ring to an h3.GeoLoop (in degrees).
// If the ring is explicitly closed (last == first), drop the trailing duplicate.
func toLoop(ring []geometry.Coord) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, c := range ring {
		loop = append(loop, h3.LatLng{Lat: c.Y, Lng: c.X})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, holes []h3.GeoLoop, res int) ([]string, error) {
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 vertices")
	}
	poly := h3.GeoPolygon{
		GeoLoop: outer,
		Holes:   holes,
	}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
