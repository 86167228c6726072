// README: Saved location store backed by PostgreSQL.
package saved

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"locater/internal/modules/location"
	"locater/internal/types"
)

//go:embed schema.sql
var schema string

const selectLocations = `
    SELECT s.id, s.name, s.description, s.entry_id, s.created_at, s.is_favorite,
           e.id, e.timestamp, e.latitude, e.longitude, e.street, e.place
    FROM saved_locations s
    LEFT JOIN location_entries e ON e.id = s.entry_id`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *Store) Create(ctx context.Context, l *Location) error {
	return s.CreateBatch(ctx, []*Location{l})
}

func (s *Store) CreateBatch(ctx context.Context, ls []*Location) error {
	if len(ls) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range ls {
			e := l.Entry
			batch.Queue(`
                INSERT INTO location_entries (id, timestamp, latitude, longitude, street, place)
                VALUES ($1, $2, $3, $4, $5, $6)`,
				string(e.ID), e.Timestamp, e.Latitude, e.Longitude, e.Street, e.Place,
			)
			batch.Queue(`
                INSERT INTO saved_locations (id, name, description, entry_id, created_at, is_favorite)
                VALUES ($1, $2, $3, $4, $5, $6)`,
				string(l.ID), l.Name, l.Description, string(e.ID), l.CreatedAt, l.IsFavorite,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Location, error) {
	row := s.db.QueryRow(ctx, selectLocations+` WHERE s.id = $1`, string(id))
	l, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*Location, error) {
	rows, err := s.db.Query(ctx, selectLocations+`
        WHERE ($1 = FALSE OR s.is_favorite)
        ORDER BY s.created_at DESC`, f.FavoritesOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) FindByName(ctx context.Context, name string) ([]*Location, error) {
	rows, err := s.db.Query(ctx, selectLocations+` WHERE s.name = $1`, name)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) Update(ctx context.Context, l *Location) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE saved_locations
        SET name = $2, description = $3, is_favorite = $4
        WHERE id = $1`,
		string(l.ID), l.Name, l.Description, l.IsFavorite,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var entryID string
		err := tx.QueryRow(ctx, `DELETE FROM saved_locations WHERE id = $1 RETURNING entry_id`, string(id)).Scan(&entryID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM location_entries WHERE id = $1`, entryID)
		return err
	})
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM saved_locations`)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		_, err = tx.Exec(ctx, `DELETE FROM location_entries`)
		return err
	})
	return n, err
}

func (s *Store) SweepOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            DELETE FROM saved_locations s
            WHERE NOT EXISTS (SELECT 1 FROM location_entries e WHERE e.id = s.entry_id)`)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `
            DELETE FROM location_entries e
            WHERE NOT EXISTS (SELECT 1 FROM saved_locations s WHERE s.entry_id = e.id)`)
		if err != nil {
			return err
		}
		n += tag.RowsAffected()
		return nil
	})
	return n, err
}

func collect(rows pgx.Rows) ([]*Location, error) {
	defer rows.Close()
	var out []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	var entryID *string
	var ts *time.Time
	var lat, lng *float64
	var street, place *string

	err := row.Scan(
		&l.ID, &l.Name, &l.Description, &l.EntryID, &l.CreatedAt, &l.IsFavorite,
		&entryID, &ts, &lat, &lng, &street, &place,
	)
	if err != nil {
		return nil, err
	}
	if entryID != nil && ts != nil && lat != nil && lng != nil {
		l.Entry = &location.Entry{
			ID:        types.ID(*entryID),
			Timestamp: *ts,
			Latitude:  *lat,
			Longitude: *lng,
			Street:    street,
			Place:     place,
		}
	}
	return &l, nil
}
