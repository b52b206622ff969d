package items

import (
	"slices"
	"testing"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

func sortFixture() *Collection {
	return New("earthsearch", []model.Item{
		{ID: "b", Properties: map[string]any{"datetime": "2023-06-02T00:00:00Z", "eo:cloud_cover": 40.0}},
		{ID: "a", Properties: map[string]any{"datetime": "2023-06-03T00:00:00Z", "eo:cloud_cover": 5.0}},
		{ID: "c", Properties: map[string]any{"datetime": "2023-06-01T00:00:00Z"}},
		{ID: "d", Properties: map[string]any{"datetime": "2023-06-03T00:00:00Z", "eo:cloud_cover": 5.0}},
	})
}

func TestParseSortBy(t *testing.T) {
	keys, err := ParseSortBy("-properties.datetime, +eo:cloud_cover,id")
	if err != nil {
		t.Fatalf("ParseSortBy: %v", err)
	}
	want := []SortKey{{Field: "datetime", Direction: Desc}, {Field: "eo:cloud_cover"}, {Field: "id"}}
	if !slices.Equal(keys, want) {
		t.Fatalf("keys=%v want %v", keys, want)
	}
	for _, bad := range []string{"", " , ", "-"} {
		if _, err := ParseSortBy(bad); err == nil {
			t.Fatalf("ParseSortBy(%q) should fail", bad)
		}
	}
}

func TestSorted_Orders(t *testing.T) {
	tests := []struct {
		sortby string
		want   []string
	}{
		{"-datetime", []string{"a", "d", "b", "c"}}, // ties keep input order
		{"datetime", []string{"c", "b", "a", "d"}},
		{"eo:cloud_cover", []string{"a", "d", "b", "c"}}, // missing sorts last
		{"-eo:cloud_cover,-id", []string{"b", "d", "a", "c"}},
		{"id", []string{"a", "b", "c", "d"}},
	}
	for _, tc := range tests {
		keys, err := ParseSortBy(tc.sortby)
		if err != nil {
			t.Fatalf("ParseSortBy: %v", err)
		}
		got := sortFixture().Sorted(keys).IDs()
		if !slices.Equal(got, tc.want) {
			t.Fatalf("sortby %q: got %v want %v", tc.sortby, got, tc.want)
		}
	}
}

func TestSorted_NullsFirstAndReceiverUntouched(t *testing.T) {
	c := sortFixture()
	got := c.Sorted([]SortKey{{Field: "eo:cloud_cover", Nulls: NullsFirst}}).IDs()
	if got[0] != "c" {
		t.Fatalf("nulls first: %v", got)
	}
	if !slices.Equal(c.IDs(), []string{"b", "a", "c", "d"}) {
		t.Fatalf("receiver reordered: %v", c.IDs())
	}
}
