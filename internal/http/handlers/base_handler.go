// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"locater/internal/modules/device"
	"locater/internal/modules/location"
	"locater/internal/modules/preferences"
	"locater/internal/modules/saved"
	"locater/internal/modules/transfer"
	"locater/internal/modules/weather"
	"locater/internal/types"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// parseID reads the :id path parameter. IDs are UUIDs issued by the save and
// import paths.
func parseID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if err := uuid.Validate(id); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: code, Message: msg})
}

func writeLocationError(c *gin.Context, err error, debug bool) {
	status, code := http.StatusInternalServerError, "unknown"
	switch {
	case errors.Is(err, location.ErrServicesDisabled):
		status, code = http.StatusServiceUnavailable, "services_disabled"
	case errors.Is(err, location.ErrPermissionDenied):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, location.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, location.ErrSuperseded):
		status, code = http.StatusConflict, "superseded"
	case errors.Is(err, location.ErrLocationUnavailable):
		status, code = http.StatusNotFound, "location_unavailable"
	case errors.Is(err, context.Canceled):
		status, code = http.StatusRequestTimeout, "canceled"
	}
	writeError(c, status, code, location.FriendlyMessage(err, debug))
}

func writeSavedError(c *gin.Context, err error, debug bool) {
	switch {
	case errors.Is(err, saved.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, saved.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, location.ErrLocationUnavailable):
		writeLocationError(c, err, debug)
	default:
		writeInternal(c, err, debug)
	}
}

func writeTransferError(c *gin.Context, err error, debug bool) {
	var invalid *transfer.InvalidDataError
	switch {
	case errors.Is(err, transfer.ErrEmptyFile), errors.Is(err, transfer.ErrInvalidFormat), errors.As(err, &invalid):
		writeError(c, http.StatusBadRequest, "invalid_file", err.Error())
	case errors.Is(err, transfer.ErrSinkNotConfigured):
		writeError(c, http.StatusServiceUnavailable, "not_configured", err.Error())
	default:
		writeInternal(c, err, debug)
	}
}

func writeWeatherError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "unknown"
	switch {
	case errors.Is(err, weather.ErrInvalidLocation):
		status, code = http.StatusBadRequest, "invalid_location"
	case errors.Is(err, weather.ErrAuthenticationFailed):
		status, code = http.StatusBadGateway, "authentication_failed"
	case errors.Is(err, weather.ErrServiceUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, weather.ErrNetwork):
		status, code = http.StatusBadGateway, "network"
	}
	writeError(c, status, code, weather.FriendlyMessage(err))
}

// Anything but a stale delivery is a malformed report.
func writeDeviceError(c *gin.Context, err error) {
	if errors.Is(err, device.ErrStaleDelivery) {
		writeError(c, http.StatusConflict, "stale", err.Error())
		return
	}
	writeError(c, http.StatusBadRequest, "bad_request", err.Error())
}

func writePreferencesError(c *gin.Context, err error, debug bool) {
	if errors.Is(err, preferences.ErrInvalidPreference) {
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeInternal(c, err, debug)
}

func writeInternal(c *gin.Context, err error, debug bool) {
	_ = c.Error(err)
	msg := "internal error"
	if debug {
		msg = err.Error()
	}
	writeError(c, http.StatusInternalServerError, "internal", msg)
}
