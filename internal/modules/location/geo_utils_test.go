package location

import (
	"math"
	"testing"

	"locater/internal/types"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: -33.8688, Lng: 151.2093},
			b:         types.Point{Lat: -33.8688, Lng: 151.2093},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Sydney Opera House to Bondi Beach (~7km)",
			a:         types.Point{Lat: -33.8568, Lng: 151.2153},
			b:         types.Point{Lat: -33.8915, Lng: 151.2767},
			wantKm:    6.9,
			tolerance: 0.5,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a, b := types.Point{Lat: 25, Lng: 121}, types.Point{Lat: 26, Lng: 122}
	d1 := DistanceKm(a, b)
	d2 := DistanceKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestEntryDistanceFrom(t *testing.T) {
	e := Entry{Latitude: 0, Longitude: 0}
	got := e.DistanceFrom(types.Point{Lat: 0, Lng: 1})
	// One degree of longitude on the equator.
	if math.Abs(got-111195) > 100 {
		t.Errorf("DistanceFrom() = %f m", got)
	}
}

type ranked struct {
	id   types.ID
	dist float64
}

func TestSortByDistance(t *testing.T) {
	items := []ranked{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	SortByDistance(items, func(r ranked) float64 { return r.dist })

	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_Stable(t *testing.T) {
	items := []ranked{{"first", 2.0}, {"near", 1.0}, {"second", 2.0}}

	SortByDistance(items, func(r ranked) float64 { return r.dist })

	if items[1].id != "first" || items[2].id != "second" {
		t.Errorf("equal distances reordered: %v", items)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []ranked
	SortByDistance(items, func(r ranked) float64 { return r.dist })
}
