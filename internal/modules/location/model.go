// README: Location entry, fix, authorization state and the observable snapshot.
package location

import (
	"fmt"
	"time"

	"locater/internal/types"
)

type AuthorizationState string

const (
	AuthUndetermined        AuthorizationState = "undetermined"
	AuthAuthorizedWhenInUse AuthorizationState = "authorized_when_in_use"
	AuthAuthorizedAlways    AuthorizationState = "authorized_always"
	AuthDenied              AuthorizationState = "denied"
	AuthRestricted          AuthorizationState = "restricted"
)

func (s AuthorizationState) Authorized() bool {
	return s == AuthAuthorizedWhenInUse || s == AuthAuthorizedAlways
}

func (s AuthorizationState) Refused() bool {
	return s == AuthDenied || s == AuthRestricted
}

func ParseAuthorizationState(v string) (AuthorizationState, error) {
	switch s := AuthorizationState(v); s {
	case AuthUndetermined, AuthAuthorizedWhenInUse, AuthAuthorizedAlways, AuthDenied, AuthRestricted:
		return s, nil
	}
	return "", fmt.Errorf("unknown authorization state %q", v)
}

// Token identifies one acquisition attempt. Tokens increase monotonically.
type Token uint64

// Fix is a single position report from the device.
type Fix struct {
	Point     types.Point `json:"point"`
	Accuracy  float64     `json:"accuracy_m,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Placemark is one reverse-geocoding candidate. Empty fields are unknown.
type Placemark struct {
	Thoroughfare       string
	Locality           string
	AdministrativeArea string
}

type Entry struct {
	ID        types.ID  `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Street    *string   `json:"street,omitempty"`
	Place     *string   `json:"place,omitempty"`
}

func (e Entry) Point() types.Point {
	return types.Point{Lat: e.Latitude, Lng: e.Longitude}
}

// Snapshot is the observable "current" state. Pointer fields are never mutated
// after publication, so a copied Snapshot is safe to share.
type Snapshot struct {
	Generation    Token              `json:"generation"`
	Authorization AuthorizationState `json:"authorization"`
	Location      *Fix               `json:"location,omitempty"`
	Street        *string            `json:"street,omitempty"`
	Place         *string            `json:"place,omitempty"`
	Entry         *Entry             `json:"entry,omitempty"`
}
