// README: Wire messages exchanged with the phone over the websocket and HTTP fallbacks.
package device

import (
	"errors"
	"time"

	"locater/internal/modules/location"
)

type MessageType string

// Commands sent to the device.
const (
	MsgAuthorizationRequest MessageType = "authorization_request"
	MsgPositionRequest      MessageType = "position_request"
	MsgPositionCancel       MessageType = "position_cancel"
	MsgState                MessageType = "state"
)

// Reports sent by the device.
const (
	MsgAuthorization MessageType = "authorization"
	MsgPosition      MessageType = "position"
	MsgPositionError MessageType = "position_error"
)

// Error codes a device may put in a position_error report.
const (
	CodeDenied           = "denied"
	CodeServicesDisabled = "services_disabled"
)

var (
	ErrStaleDelivery   = errors.New("no outstanding request for token")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrInvalidPosition = errors.New("invalid position")
)

// Message is the single envelope for both directions. Unused fields are omitted.
type Message struct {
	Type            MessageType                 `json:"type"`
	Token           location.Token              `json:"token,omitempty"`
	State           location.AuthorizationState `json:"state,omitempty"`
	ServicesEnabled *bool                       `json:"services_enabled,omitempty"`
	Latitude        float64                     `json:"latitude,omitempty"`
	Longitude       float64                     `json:"longitude,omitempty"`
	Accuracy        float64                     `json:"accuracy,omitempty"`
	Timestamp       *time.Time                  `json:"timestamp,omitempty"`
	Error           string                      `json:"error,omitempty"`
	Snapshot        *location.Snapshot          `json:"snapshot,omitempty"`
}

// positionError maps a device error code onto the acquisition taxonomy.
func positionError(code string) error {
	switch code {
	case CodeDenied:
		return location.ErrPermissionDenied
	case CodeServicesDisabled:
		return location.ErrServicesDisabled
	case "":
		return errors.New("device reported an unspecified position error")
	}
	return errors.New(code)
}
