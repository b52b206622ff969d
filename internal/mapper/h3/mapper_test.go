package h3mapper

import (
	"reflect"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
)

func TestBBox_HappyPath_SortedUnique(t *testing.T) {
	m := New()
	bb := model.BBox{West: 17.95, South: 59.30, East: 18.15, North: 59.40}

	cells, err := m.CellsForBBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBBox err: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected non-empty cells for bbox")
	}
	if !sort.StringsAreSorted(cells) {
		t.Fatalf("cells must be sorted")
	}
	if hasDups(cells) {
		t.Fatalf("cells must be de-duplicated")
	}
}

func TestPolygon_SubsetOfBBoxAndDeterministic(t *testing.T) {
	m := New()
	bb := model.BBox{West: 17.95, South: 59.30, East: 18.15, North: 59.40}
	poly := geometry.Polygon{Ring: []geometry.Coord{
		{X: 18.00, Y: 59.32}, {X: 18.12, Y: 59.32}, {X: 18.12, Y: 59.38}, {X: 18.00, Y: 59.38}, {X: 18.00, Y: 59.32},
	}}
	res := 9
	cp, err := m.CellsForPolygon(poly, res)
	if err != nil {
		t.Fatalf("polygon: %v", err)
	}
	cb, err := m.CellsForBBox(bb, res)
	if err != nil {
		t.Fatalf("bbox: %v", err)
	}
	if len(cp) == 0 {
		t.Fatalf("expected non-empty polygon coverage")
	}
	cp2, err := m.CellsForPolygon(poly, res)
	if err != nil {
		t.Fatalf("polygon second call: %v", err)
	}
	if !reflect.DeepEqual(cp, cp2) {
		t.Fatalf("expected identical output for identical input")
	}
	if len(cp) > len(cb) {
		t.Fatalf("polygon coverage larger than bbox coverage (unexpected)")
	}
}

func TestCoverBBox_CoversEveryInteriorPoint(t *testing.T) {
	m := New()
	bb := model.BBox{West: 18.00, South: 59.30, East: 18.10, North: 59.36}
	res := 6 // cells larger than the box: polyfill alone would be empty

	cells, err := m.CoverBBox(bb, res)
	if err != nil {
		t.Fatalf("CoverBBox: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("cover must never be empty for a non-empty box")
	}

	bounds := make([]model.BBox, 0, len(cells))
	for _, c := range cells {
		b, err := m.CellBounds(c)
		if err != nil {
			t.Fatalf("CellBounds(%s): %v", c, err)
		}
		bounds = append(bounds, b)
	}
	for _, p := range [][2]float64{{18.0, 59.3}, {18.1, 59.36}, {18.05, 59.33}, {18.0, 59.36}} {
		ll := h3.LatLng{Lat: p[1], Lng: p[0]}
		cell, err := h3.LatLngToCell(ll, res)
		if err != nil {
			t.Fatalf("LatLngToCell: %v", err)
		}
		found := false
		for _, c := range cells {
			if c == cell.String() {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("cell %s containing %v missing from cover %v", cell, p, cells)
		}
	}
}

func TestCoverBBox_RejectsEmptyBox(t *testing.T) {
	m := New()
	if _, err := m.CoverBBox(model.BBox{West: 10, South: 0, East: 5, North: 1}, 5); err == nil {
		t.Fatalf("expected error for west > east")
	}
}

func TestBounds_InvalidResolutionAndDegeneratePolygon(t *testing.T) {
	m := New()
	bb := model.BBox{West: 11, South: 55, East: 12, North: 56}

	if _, err := m.CellsForBBox(bb, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellsForBBox(bb, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}
	if _, err := m.CellsForPolygon(geometry.Polygon{}, 8); err == nil {
		t.Fatalf("expected error for degenerate polygon")
	}
	if _, err := m.CellBounds("not-a-cell"); err == nil {
		t.Fatalf("expected error for invalid cell")
	}
}

func hasDups(s []string) bool {
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
