package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locater/internal/maps"
	"locater/internal/modules/device"
	"locater/internal/modules/location"
	"locater/internal/modules/preferences"
	"locater/internal/modules/saved"
	"locater/internal/modules/transfer"
	"locater/internal/modules/weather"
	"locater/internal/types"
)

type weatherStub struct{}

func (weatherStub) Current(_ context.Context, p types.Point) (weather.Report, error) {
	return weather.Report{TemperatureC: 21.5, Condition: weather.ConditionFromWMO(0), Timestamp: time.Now()}, nil
}

type routeStub struct {
	origin, dest types.Point
}

func (r *routeStub) GetTravelEstimate(_ context.Context, origin, dest types.Point) (maps.Estimate, error) {
	r.origin, r.dest = origin, dest
	return maps.Estimate{Duration: 12 * time.Minute, Distance: "5 km", Meters: 5000}, nil
}

type testServer struct {
	handler http.Handler
	routes  *routeStub
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	return newTestServerWith(t, token, nil)
}

func newTestServerWith(t *testing.T, token string, configure func(*ServerDeps)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	bridge := device.NewBridge(log)
	coord := location.NewCoordinator(bridge, bridge, nil, location.Options{
		FixTimeout:           5 * time.Second,
		AuthorizationTimeout: time.Second,
	}, log)
	bridge.SetAuthorizationListener(coord)

	store, err := saved.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	routes := &routeStub{}
	deps := ServerDeps{
		Coordinator: coord,
		Bridge:      bridge,
		Saved:       saved.NewService(store, coord, log),
		Transfer:    transfer.NewService(store, nil, log),
		Weather:     weather.NewService(weatherStub{}, weather.NewMemoryCache(time.Minute, 10), weather.Options{Attempts: 1}, log),
		Preferences: preferences.NewService(preferences.NewMemoryStore(), log),
		Routes:      routes,
		APIToken:    token,
		Log:         log,
	}
	if configure != nil {
		configure(&deps)
	}
	return &testServer{handler: NewServer(deps).Routes(), routes: routes}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// acquire runs one acquisition, answering the device side over REST.
func (s *testServer) acquire(t *testing.T, p types.Point) location.Entry {
	t.Helper()
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- s.do(http.MethodPost, "/api/location/acquire", nil) }()

	w := s.do(http.MethodGet, "/api/device/commands?wait=2s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cmd := decode[device.Message](t, w)
	require.Equal(t, device.MsgPositionRequest, cmd.Type)

	w = s.do(http.MethodPost, "/api/device/position", map[string]any{
		"token": cmd.Token, "latitude": p.Lat, "longitude": p.Lng, "accuracy": 8,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// A second delivery for the same request is stale.
	w = s.do(http.MethodPost, "/api/device/position", map[string]any{
		"token": cmd.Token, "latitude": p.Lat, "longitude": p.Lng,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	select {
	case w = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not finish")
	}
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[location.Entry](t, w)
}

func (s *testServer) authorize(t *testing.T, state string) {
	t.Helper()
	w := s.do(http.MethodPut, "/api/device/authorization", map[string]any{"state": state})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "secret")
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", nil).Code)
	// API routes require the token.
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/location/current", nil).Code)
}

func TestEntryBeforeAcquire(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodGet, "/api/location/entry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "location_unavailable", body["error"])
	assert.Equal(t, "Unable to update location. Please try again.", body["message"])
}

func TestAcquireDenied(t *testing.T) {
	s := newTestServer(t, "")
	s.authorize(t, "denied")

	w := s.do(http.MethodPost, "/api/location/acquire", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "permission_denied", body["error"])
	assert.Equal(t, "Location access was denied. Please allow access in Settings.", body["message"])
}

func TestAcquireServicesDisabled(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodPut, "/api/device/authorization", map[string]any{
		"state": "authorized_always", "services_enabled": false,
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/api/location/acquire", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeviceRejectsBadReports(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodPut, "/api/device/authorization", map[string]any{"state": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/device/position", map[string]any{"token": 1, "latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/device/commands?wait=10ms", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSavedLocationFlow(t *testing.T) {
	s := newTestServer(t, "")
	s.authorize(t, "authorized_when_in_use")
	here := types.Point{Lat: 48.8584, Lng: 2.2945}

	entry := s.acquire(t, here)
	assert.Equal(t, here.Lat, entry.Latitude)

	w := s.do(http.MethodGet, "/api/location/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[location.Snapshot](t, w)
	require.NotNil(t, snap.Entry)
	assert.Equal(t, entry.ID, snap.Entry.ID)

	w = s.do(http.MethodPost, "/api/saved", map[string]any{"name": "Tower", "description": "picnic spot"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[saved.Location](t, w)
	assert.NotEqual(t, entry.ID, created.EntryID)
	require.NotNil(t, created.Entry)
	assert.Equal(t, entry.Latitude, created.Entry.Latitude)
	path := "/api/saved/" + string(created.ID)

	w = s.do(http.MethodGet, "/api/saved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Locations []saved.Location `json:"locations"`
	}](t, w)
	require.Len(t, list.Locations, 1)
	require.NotNil(t, list.Locations[0].DistanceMeters)
	assert.InDelta(t, 0, *list.Locations[0].DistanceMeters, 0.001)

	w = s.do(http.MethodPost, path+"/favorite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[saved.Location](t, w).IsFavorite)

	w = s.do(http.MethodPatch, path, map[string]any{"name": "Eiffel Tower"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Eiffel Tower", decode[saved.Location](t, w).Name)

	w = s.do(http.MethodGet, path+"/navigation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nav := decode[maps.Navigation](t, w)
	assert.Equal(t, preferences.PlannerApple, nav.Planner)
	assert.True(t, strings.HasPrefix(nav.URL, "maps://?daddr=48.8584,2.2945"))

	w = s.do(http.MethodPut, "/api/preferences", map[string]any{"route_planner": "waze"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, path+"/navigation", nil)
	assert.Equal(t, "waze://?ll=48.8584,2.2945&navigate=yes", decode[maps.Navigation](t, w).URL)

	w = s.do(http.MethodGet, path+"/route", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5000, decode[maps.Estimate](t, w).Meters)
	assert.Equal(t, here, s.routes.origin)

	w = s.do(http.MethodGet, path+"/distance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/transfer/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Locations-")
	assert.Contains(t, w.Body.String(), `"Eiffel Tower","picnic spot"`)

	w = s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveWithoutLocation(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodPost, "/api/saved", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSavedInvalidID(t *testing.T) {
	s := newTestServer(t, "")
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/saved/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/saved/0b8e6f5e-3f0c-4a57-9d55-0c1f2f0b9a11", nil).Code)
}

func TestImportMultipart(t *testing.T) {
	s := newTestServer(t, "")
	csv := strings.Join([]string{
		strings.Join(transfer.Header, ","),
		`"Cafe","","","","10","20","false","01/05/2024, 08:05",""`,
		`"Broken","","","","x","20","false","01/05/2024, 08:05",""`,
	}, "\n")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Locations-2024-05-01.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(csv))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transfer/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[transfer.Report](t, w)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, []string{"Row 3: Invalid latitude"}, report.Errors)
}

func TestImportEmptyBody(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/transfer/import", strings.NewReader(""))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportRejectsOversizedBody(t *testing.T) {
	s := newTestServerWith(t, "", func(d *ServerDeps) { d.MaxImportSize = 256 })
	rows := []string{strings.Join(transfer.Header, ",")}
	for i := range 50 {
		rows = append(rows, fmt.Sprintf(`"Spot %d","","","","10","20","false","01/05/2024, 08:05",""`, i))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/transfer/import", strings.NewReader(strings.Join(rows, "\n")))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	// Nothing from the truncated prefix is kept.
	list := s.do(http.MethodGet, "/api/saved", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Empty(t, decode[map[string][]saved.Location](t, list)["locations"])
}

func TestImportRejectsOversizedFile(t *testing.T) {
	s := newTestServerWith(t, "", func(d *ServerDeps) { d.MaxImportSize = 64 })

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Locations.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(strings.Repeat("x", 200)))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transfer/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestUploadWithoutSink(t *testing.T) {
	s := newTestServer(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/transfer/export/s3", nil).Code)
}

func TestWeather(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodGet, "/api/weather?lat=48.85&lng=2.29", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 21.5, decode[weather.Report](t, w).TemperatureC)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/weather?lat=48.85", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/weather?lat=100&lng=0", nil).Code)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(http.MethodGet, "/api/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, preferences.Defaults(), decode[preferences.Preferences](t, w))

	w = s.do(http.MethodPut, "/api/preferences", map[string]any{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
