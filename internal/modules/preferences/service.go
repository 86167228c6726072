// README: Preferences service: defaults, validation and partial updates.
package preferences

import (
	"context"

	"github.com/rs/zerolog"
)

const (
	fieldTheme   = "theme"
	fieldPlanner = "route_planner"
)

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Get returns stored preferences. Unset or unrecognised values read as the
// defaults.
func (s *Service) Get(ctx context.Context) (Preferences, error) {
	fields, err := s.store.Load(ctx)
	if err != nil {
		return Preferences{}, err
	}
	p := Defaults()
	if t := Theme(fields[fieldTheme]); t.Valid() {
		p.Theme = t
	}
	if r := RoutePlanner(fields[fieldPlanner]); r.Valid() {
		p.RoutePlanner = r
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, patch Patch) (Preferences, error) {
	if err := patch.validate(); err != nil {
		return Preferences{}, err
	}
	fields := map[string]string{}
	if patch.Theme != nil {
		fields[fieldTheme] = string(*patch.Theme)
	}
	if patch.RoutePlanner != nil {
		fields[fieldPlanner] = string(*patch.RoutePlanner)
	}
	if err := s.store.Save(ctx, fields); err != nil {
		return Preferences{}, err
	}
	s.log.Info().Interface("changed", fields).Msg("preferences updated")
	return s.Get(ctx)
}
