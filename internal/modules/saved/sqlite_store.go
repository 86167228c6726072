// README: Saved location store backed by SQLite through GORM, for single-node deployments.
package saved

import (
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"locater/internal/modules/location"
	"locater/internal/types"
)

type entryModel struct {
	ID        string `gorm:"primaryKey"`
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Street    *string
	Place     *string
}

func (entryModel) TableName() string { return "location_entries" }

type savedModel struct {
	ID          string    `gorm:"primaryKey"`
	Name        string    `gorm:"not null;index"`
	Description string    `gorm:"not null;default:''"`
	EntryID     string    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"index"`
	IsFavorite  bool
}

func (savedModel) TableName() string { return "saved_locations" }

// batchSize keeps each statement under SQLite's bound variable limit.
const batchSize = 500

type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens path and migrates the schema. ":memory:" is pinned to
// one connection so every query sees the same database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&entryModel{}, &savedModel{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, l *Location) error {
	return s.CreateBatch(ctx, []*Location{l})
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, ls []*Location) error {
	if len(ls) == 0 {
		return nil
	}
	entries := make([]entryModel, 0, len(ls))
	rows := make([]savedModel, 0, len(ls))
	for _, l := range ls {
		entries = append(entries, toEntryModel(l.Entry))
		rows = append(rows, toSavedModel(l))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&entries, batchSize).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&rows, batchSize).Error
	})
}

func (s *SQLiteStore) Get(ctx context.Context, id types.ID) (*Location, error) {
	var m savedModel
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out, err := s.withEntries(ctx, []savedModel{m})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *SQLiteStore) List(ctx context.Context, f ListFilter) ([]*Location, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if f.FavoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}
	var ms []savedModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	return s.withEntries(ctx, ms)
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) ([]*Location, error) {
	var ms []savedModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).Find(&ms).Error; err != nil {
		return nil, err
	}
	return s.withEntries(ctx, ms)
}

func (s *SQLiteStore) Update(ctx context.Context, l *Location) error {
	res := s.db.WithContext(ctx).
		Model(&savedModel{}).
		Where("id = ?", string(l.ID)).
		Updates(map[string]any{
			"name":        l.Name,
			"description": l.Description,
			"is_favorite": l.IsFavorite,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id types.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m savedModel
		err := tx.Where("id = ?", string(id)).Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&savedModel{}, "id = ?", m.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&entryModel{}, "id = ?", m.EntryID).Error
	})
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&savedModel{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return tx.Where("1 = 1").Delete(&entryModel{}).Error
	})
	return n, err
}

func (s *SQLiteStore) SweepOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`DELETE FROM saved_locations
            WHERE NOT EXISTS (SELECT 1 FROM location_entries e WHERE e.id = saved_locations.entry_id)`)
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		res = tx.Exec(`DELETE FROM location_entries
            WHERE NOT EXISTS (SELECT 1 FROM saved_locations s WHERE s.entry_id = location_entries.id)`)
		if res.Error != nil {
			return res.Error
		}
		n += res.RowsAffected
		return nil
	})
	return n, err
}

func (s *SQLiteStore) withEntries(ctx context.Context, ms []savedModel) ([]*Location, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.EntryID)
	}
	byID := make(map[string]entryModel, len(ids))
	for chunk := range slices.Chunk(ids, batchSize) {
		var es []entryModel
		if err := s.db.WithContext(ctx).Where("id IN ?", chunk).Find(&es).Error; err != nil {
			return nil, err
		}
		for _, e := range es {
			byID[e.ID] = e
		}
	}

	out := make([]*Location, 0, len(ms))
	for _, m := range ms {
		l := fromSavedModel(m)
		if e, ok := byID[m.EntryID]; ok {
			l.Entry = fromEntryModel(e)
		}
		out = append(out, l)
	}
	return out, nil
}

func toEntryModel(e *location.Entry) entryModel {
	return entryModel{
		ID:        string(e.ID),
		Timestamp: e.Timestamp,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Street:    e.Street,
		Place:     e.Place,
	}
}

func fromEntryModel(m entryModel) *location.Entry {
	return &location.Entry{
		ID:        types.ID(m.ID),
		Timestamp: m.Timestamp,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Street:    m.Street,
		Place:     m.Place,
	}
}

func toSavedModel(l *Location) savedModel {
	return savedModel{
		ID:          string(l.ID),
		Name:        l.Name,
		Description: l.Description,
		EntryID:     string(l.Entry.ID),
		CreatedAt:   l.CreatedAt,
		IsFavorite:  l.IsFavorite,
	}
}

func fromSavedModel(m savedModel) *Location {
	return &Location{
		ID:          types.ID(m.ID),
		Name:        m.Name,
		Description: m.Description,
		EntryID:     types.ID(m.EntryID),
		CreatedAt:   m.CreatedAt,
		IsFavorite:  m.IsFavorite,
	}
}
