package h3mapper

import (
	"slices"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestChildren_ContainOriginalAreaAndAreSorted(t *testing.T) {
	m := New()

	ll := h3.LatLng{Lat: 59.3293, Lng: 18.0686}
	parent, err := h3.LatLngToCell(ll, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	child, err := h3.LatLngToCell(ll, 8)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}

	children, err := m.ToChildren(parent.String(), 8)
	if err != nil {
		t.Fatalf("ToChildren: %v", err)
	}
	if !slices.Contains(children, child.String()) {
		t.Fatalf("children of %s did not include %s", parent, child)
	}
	if !sort.StringsAreSorted(children) {
		t.Fatalf("children must be sorted")
	}
}

func TestChildren_SameResAndInvalid(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 55.6050, Lng: 13.0038}, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	got, err := m.ToChildren(cell.String(), 7)
	if err != nil || len(got) != 1 || got[0] != cell.String() {
		t.Fatalf("same-res children=%v err=%v", got, err)
	}
	if _, err := m.ToChildren(cell.String(), 6); err == nil {
		t.Fatalf("expected error for childRes below cell resolution")
	}
	if _, err := m.ToChildren("zzz", 8); err == nil {
		t.Fatalf("expected error for invalid cell")
	}
}
