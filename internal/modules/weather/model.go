// README: Weather report model, condition mapping and error taxonomy.
package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Condition string

const (
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
	ConditionUnknown Condition = "unknown"
)

// Description is the label shown next to the condition icon.
func (c Condition) Description() string {
	switch c {
	case ConditionClear:
		return "Clear"
	case ConditionCloudy:
		return "Cloudy"
	case ConditionRain:
		return "Rain"
	case ConditionSnow:
		return "Snow"
	case ConditionStorm:
		return "Storm"
	case ConditionMist:
		return "Misty"
	}
	return "Unknown"
}

// ConditionFromWMO maps a WMO weather interpretation code.
func ConditionFromWMO(code int) Condition {
	switch {
	case code == 0 || code == 1:
		return ConditionClear
	case code == 2 || code == 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionMist
	case code == 56 || code == 57 || code == 66 || code == 67:
		return ConditionSnow
	case code >= 51 && code <= 65, code >= 80 && code <= 82:
		return ConditionRain
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return ConditionSnow
	case code == 95 || code == 96 || code == 99:
		return ConditionStorm
	}
	return ConditionUnknown
}

// Report is current conditions at a point. Humidity is relative, in [0, 1].
type Report struct {
	TemperatureC float64   `json:"temperature_c"`
	Condition    Condition `json:"condition"`
	Description  string    `json:"description"`
	Humidity     float64   `json:"humidity"`
	WindSpeed    float64   `json:"wind_speed_kmh"`
	Timestamp    time.Time `json:"timestamp"`
}

var (
	ErrAuthenticationFailed = errors.New("weather service authentication failed")
	ErrServiceUnavailable   = errors.New("weather service is unavailable")
	ErrInvalidLocation      = errors.New("invalid location coordinates")
	ErrNetwork              = errors.New("weather network error")
)

// HTTPStatusError is a non-2xx answer from the provider.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("weather provider returned %d: %s", e.StatusCode, e.Body)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidLocation):
		return "invalid_location"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "unknown"
}

// FriendlyMessage maps err to user-facing text.
func FriendlyMessage(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "Weather service authentication failed. Please try again later."
	case errors.Is(err, ErrServiceUnavailable):
		return "Weather service is currently unavailable. Please try again later."
	case errors.Is(err, ErrInvalidLocation):
		return "Invalid location coordinates provided."
	case errors.Is(err, ErrNetwork):
		return "Network connection error. Please check your internet connection."
	}
	return "Unexpected error: " + err.Error()
}
