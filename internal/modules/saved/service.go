// README: Saved location service (save current entry, list, edit, favorite, delete, distance).
package saved

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"locater/internal/modules/location"
	"locater/internal/types"
)

// CurrentEntryProvider exposes the entry of the latest acquisition.
type CurrentEntryProvider interface {
	CurrentEntry() (location.Entry, error)
}

type Service struct {
	repo    Repository
	current CurrentEntryProvider
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, current CurrentEntryProvider, log zerolog.Logger) *Service {
	return &Service{repo: repo, current: current, log: log, now: time.Now}
}

// SaveCurrent persists the current entry under a name. Fails with
// location.ErrLocationUnavailable when nothing has been acquired yet.
func (s *Service) SaveCurrent(ctx context.Context, cmd SaveCommand) (*Location, error) {
	entry, err := s.current.CurrentEntry()
	if err != nil {
		return nil, err
	}

	name := DefaultName
	if entry.Street != nil && strings.TrimSpace(*entry.Street) != "" {
		name = strings.TrimSpace(*entry.Street)
	}
	if cmd.Name != nil {
		name = strings.TrimSpace(*cmd.Name)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}

	// Each saved record owns a private copy of the entry, so the same fix can
	// be saved more than once.
	entry.ID = types.ID(uuid.NewString())
	l := &Location{
		ID:          types.ID(uuid.NewString()),
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		EntryID:     entry.ID,
		Entry:       &entry,
		CreatedAt:   s.now(),
		IsFavorite:  cmd.IsFavorite,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	s.log.Info().Str("id", string(l.ID)).Str("entry_id", string(entry.ID)).Msg("location saved")
	return l, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Location, error) {
	return s.repo.Get(ctx, id)
}

// List returns saved locations newest first. With a current entry each row
// carries its distance, and SortByDistance orders nearest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*Location, error) {
	ls, err := s.repo.List(ctx, ListFilter{FavoritesOnly: q.FavoritesOnly})
	if err != nil {
		return nil, err
	}

	current, err := s.current.CurrentEntry()
	if errors.Is(err, location.ErrLocationUnavailable) {
		return ls, nil
	}
	if err != nil {
		return nil, err
	}

	for _, l := range ls {
		if l.Entry == nil {
			continue
		}
		d := l.Entry.DistanceFrom(current.Point())
		l.DistanceMeters = &d
	}
	if q.SortByDistance {
		location.SortByDistance(ls, func(l *Location) float64 {
			if l.DistanceMeters == nil {
				return math.Inf(1)
			}
			return *l.DistanceMeters
		})
	}
	return ls, nil
}

func (s *Service) Update(ctx context.Context, id types.ID, cmd UpdateCommand) (*Location, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
		}
		l.Name = name
	}
	if cmd.Description != nil {
		l.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.IsFavorite != nil {
		l.IsFavorite = *cmd.IsFavorite
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ToggleFavorite(ctx context.Context, id types.ID) (*Location, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.IsFavorite = !l.IsFavorite
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, id types.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("id", string(id)).Msg("saved location deleted")
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("count", n).Msg("all saved locations deleted")
	return n, nil
}

// Distance returns metres between the current entry and the saved location.
func (s *Service) Distance(ctx context.Context, id types.ID) (float64, error) {
	current, err := s.current.CurrentEntry()
	if err != nil {
		return 0, err
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if l.Entry == nil {
		return 0, fmt.Errorf("%w: location %s has no entry", ErrNotFound, id)
	}
	return l.Entry.DistanceFrom(current.Point()), nil
}

// SweepOrphans removes half-written pairs. Run at startup.
func (s *Service) SweepOrphans(ctx context.Context) (int64, error) {
	n, err := s.repo.SweepOrphans(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn().Int64("removed", n).Msg("swept orphaned saved locations")
	}
	return n, nil
}
