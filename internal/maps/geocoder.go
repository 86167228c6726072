// README: Reverse geocoder backed by the Google Maps Geocoding API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"locater/internal/modules/location"
	"locater/internal/types"
)

// Geocoder resolves coordinates to placemarks with the Geocoding API.
type Geocoder struct {
	client   *maps.Client
	language string
}

func NewGeocoder(client *maps.Client, language string) *Geocoder {
	return &Geocoder{client: client, language: language}
}

// ReverseGeocode returns candidates best-first. An empty slice means nothing
// was found.
func (g *Geocoder) ReverseGeocode(ctx context.Context, p types.Point) ([]location.Placemark, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Language: g.language,
	})
	if err != nil {
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}

	marks := make([]location.Placemark, 0, len(results))
	for _, r := range results {
		marks = append(marks, placemark(r.AddressComponents))
	}
	return marks, nil
}

func placemark(components []maps.AddressComponent) location.Placemark {
	var pm location.Placemark
	for _, c := range components {
		for _, t := range c.Types {
			switch t {
			case "route":
				if pm.Thoroughfare == "" {
					pm.Thoroughfare = c.LongName
				}
			case "locality", "postal_town":
				if pm.Locality == "" {
					pm.Locality = c.LongName
				}
			case "administrative_area_level_1":
				if pm.AdministrativeArea == "" {
					pm.AdministrativeArea = c.LongName
				}
			}
		}
	}
	return pm
}
