// README: Saved location model, commands and module errors.
package saved

import (
	"errors"
	"time"

	"locater/internal/modules/location"
	"locater/internal/types"
)

const DefaultName = "Unnamed Location"

var (
	ErrNotFound   = errors.New("saved location not found")
	ErrBadRequest = errors.New("bad request")
)

// Location is a user-annotated LocationEntry. Deleting it deletes the entry.
type Location struct {
	ID          types.ID        `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	EntryID     types.ID        `json:"entry_id"`
	Entry       *location.Entry `json:"entry,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	IsFavorite  bool            `json:"is_favorite"`

	// DistanceMeters from the current entry; set by List when one exists.
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}

type ListFilter struct {
	FavoritesOnly bool
}

type ListQuery struct {
	FavoritesOnly  bool `form:"favorites"`
	SortByDistance bool `form:"sort_by_distance"`
}

// SaveCommand annotates the current entry. A nil Name falls back to the
// entry's street, then DefaultName.
type SaveCommand struct {
	Name        *string `json:"name"`
	Description string  `json:"description"`
	IsFavorite  bool    `json:"is_favorite"`
}

type UpdateCommand struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsFavorite  *bool   `json:"is_favorite"`
}
