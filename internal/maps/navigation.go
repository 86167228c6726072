// README: Display names and deep links into the supported route planners.
package maps

import (
	"fmt"
	"net/url"

	"locater/internal/modules/preferences"
	"locater/internal/types"
)

// Navigation holds the deep links for opening a destination in a route
// planner. FallbackURL opens Apple Maps when the planner app is missing.
type Navigation struct {
	Planner     preferences.RoutePlanner `json:"planner"`
	URL         string                   `json:"url"`
	FallbackURL string                   `json:"fallback_url"`
	ShareURL    string                   `json:"share_url"`
	ShareText   string                   `json:"share_text"`
}

// DisplayName picks the label for a destination: description, then street,
// then "Location".
func DisplayName(description string, street *string) string {
	if description != "" {
		return description
	}
	if street != nil && *street != "" {
		return *street
	}
	return "Location"
}

// NavigationLinks builds planner-specific links to p.
func NavigationLinks(planner preferences.RoutePlanner, p types.Point, name string) Navigation {
	coords := p.Key()
	encoded := url.QueryEscape(name)

	nav := Navigation{
		Planner:     planner,
		FallbackURL: fmt.Sprintf("maps://?q=%s&name=%s", coords, encoded),
		ShareURL:    "https://maps.apple.com/?q=" + coords,
	}
	nav.ShareText = fmt.Sprintf("📍 %s\n\nOpen in Maps: %s", name, nav.ShareURL)

	switch planner {
	case preferences.PlannerGoogle:
		nav.URL = fmt.Sprintf("comgooglemaps://?q=%s&name=%s", coords, encoded)
	case preferences.PlannerWaze:
		nav.URL = fmt.Sprintf("waze://?ll=%s&navigate=yes", coords)
	default:
		nav.Planner = preferences.PlannerApple
		nav.URL = fmt.Sprintf("maps://?daddr=%s&dirflg=d&t=m", coords)
	}
	return nav
}
