// README: User preferences (theme and route planner) with defaults.
package preferences

import (
	"errors"
	"fmt"
)

type Theme string

const (
	ThemeOceanBlue Theme = "ocean_blue"
	ThemeSystem    Theme = "system"
)

type RoutePlanner string

const (
	PlannerApple  RoutePlanner = "apple"
	PlannerGoogle RoutePlanner = "google"
	PlannerWaze   RoutePlanner = "waze"
)

var ErrInvalidPreference = errors.New("invalid preference")

type Preferences struct {
	Theme        Theme        `json:"theme"`
	RoutePlanner RoutePlanner `json:"route_planner"`
}

func Defaults() Preferences {
	return Preferences{Theme: ThemeOceanBlue, RoutePlanner: PlannerApple}
}

// Patch carries the fields to change; nil fields are left alone.
type Patch struct {
	Theme        *Theme        `json:"theme"`
	RoutePlanner *RoutePlanner `json:"route_planner"`
}

func (t Theme) Valid() bool {
	return t == ThemeOceanBlue || t == ThemeSystem
}

func (p RoutePlanner) Valid() bool {
	switch p {
	case PlannerApple, PlannerGoogle, PlannerWaze:
		return true
	}
	return false
}

func (p Patch) validate() error {
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidPreference, *p.Theme)
	}
	if p.RoutePlanner != nil && !p.RoutePlanner.Valid() {
		return fmt.Errorf("%w: route planner %q", ErrInvalidPreference, *p.RoutePlanner)
	}
	return nil
}
