// README: Travel time and distance between two points via the Directions API.
package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"locater/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// Estimate is the driving time and distance of the first route leg.
type Estimate struct {
	Duration time.Duration `json:"duration"`
	Distance string        `json:"distance"`
	Meters   int           `json:"meters"`
}

// RouteService handles interactions with the Directions API.
type RouteService struct {
	client   *maps.Client
	language string
}

func NewRouteService(client *maps.Client, language string) *RouteService {
	return &RouteService{client: client, language: language}
}

// GetTravelEstimate returns the driving estimate from origin to destination.
func (s *RouteService) GetTravelEstimate(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin.Key(),
		Destination: destination.Key(),
		Mode:        maps.TravelModeDriving,
		Language:    s.language,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return Estimate{Duration: leg.Duration, Distance: leg.Distance.HumanReadable, Meters: leg.Distance.Meters}, nil
}
