// README: Pure geographic helpers: haversine distance and ordering by distance.
package location

import (
	"cmp"
	"math"
	"slices"

	"locater/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometres.
func DistanceKm(a, b types.Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceMeters is DistanceKm scaled to metres.
func DistanceMeters(a, b types.Point) float64 {
	return DistanceKm(a, b) * 1000
}

// DistanceFrom measures from this entry's point to other.
func (e Entry) DistanceFrom(other types.Point) float64 {
	return DistanceMeters(e.Point(), other)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// SortByDistance orders items nearest first. Equal distances keep their
// relative order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(dist(a), dist(b))
	})
}
