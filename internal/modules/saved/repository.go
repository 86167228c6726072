// README: Storage contract shared by the Postgres and SQLite saved-location stores.
package saved

import (
	"context"

	"locater/internal/types"
)

// Repository persists saved locations together with their entries. Both
// implementations keep the pair consistent inside a transaction.
type Repository interface {
	Create(ctx context.Context, l *Location) error
	// CreateBatch inserts all rows or none.
	CreateBatch(ctx context.Context, ls []*Location) error
	Get(ctx context.Context, id types.ID) (*Location, error)
	// List returns newest first.
	List(ctx context.Context, f ListFilter) ([]*Location, error)
	FindByName(ctx context.Context, name string) ([]*Location, error)
	Update(ctx context.Context, l *Location) error
	Delete(ctx context.Context, id types.ID) error
	DeleteAll(ctx context.Context) (int64, error)
	// SweepOrphans removes saved rows without an entry and entries without a
	// saved row.
	SweepOrphans(ctx context.Context) (int64, error)
}
