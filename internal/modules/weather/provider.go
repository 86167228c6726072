// README: Open-Meteo current-conditions provider and HTTP status classification.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"locater/internal/types"
)

// Provider fetches current conditions for one point. Implementations return
// errors from the taxonomy where they can tell.
type Provider interface {
	Current(ctx context.Context, p types.Point) (Report, error)
}

// OpenMeteo talks to the Open-Meteo forecast API.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
}

func NewOpenMeteo(baseURL string, client *http.Client) *OpenMeteo {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OpenMeteo{baseURL: baseURL, client: client}
}

type openMeteoResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

func (o *OpenMeteo) Current(ctx context.Context, p types.Point) (Report, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Report{}, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Report{}, classify(&HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var out openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Report{}, fmt.Errorf("decode weather response: %w", err)
	}
	ts, err := time.Parse("2006-01-02T15:04", out.Current.Time)
	if err != nil {
		ts = time.Now().UTC()
	}
	cond := ConditionFromWMO(out.Current.WeatherCode)
	return Report{
		TemperatureC: out.Current.Temperature,
		Condition:    cond,
		Description:  cond.Description(),
		Humidity:     out.Current.Humidity / 100,
		WindSpeed:    out.Current.WindSpeed,
		Timestamp:    ts,
	}, nil
}

// classify places transport and status errors into the taxonomy.
func classify(err error) error {
	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		case status.StatusCode == http.StatusBadRequest:
			return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		case status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return err
}
