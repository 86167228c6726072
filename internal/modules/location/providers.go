// README: Narrow interfaces for the device-side collaborators of the coordinator.
package location

import (
	"context"

	"locater/internal/types"
)

// PermissionProvider reports and requests location authorization. Outcomes of
// RequestAuthorization arrive later through Coordinator.AuthorizationChanged.
type PermissionProvider interface {
	ServicesEnabled(ctx context.Context) (bool, error)
	CurrentAuthorization(ctx context.Context) (AuthorizationState, error)
	RequestAuthorization(ctx context.Context) error
}

// PositionSource produces one fix per call. Canceling ctx asks the source to stop;
// a result delivered afterwards must not be reported for a newer token.
type PositionSource interface {
	RequestPosition(ctx context.Context, token Token) (Fix, error)
}

type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) ([]Placemark, error)
}
