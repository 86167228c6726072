// README: Saved location handlers: CRUD, favorites, distance, navigation links, driving ETA.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"locater/internal/maps"
	"locater/internal/modules/preferences"
	"locater/internal/modules/saved"
	"locater/internal/types"
)

// RouteEstimator is satisfied by maps.RouteService.
type RouteEstimator interface {
	GetTravelEstimate(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

type SavedHandler struct {
	saved   *saved.Service
	current saved.CurrentEntryProvider
	prefs   *preferences.Service
	routes  RouteEstimator
	debug   bool
}

// NewSavedHandler wires the handler. routes may be nil when no Maps key is
// configured; the route endpoint then answers 503.
func NewSavedHandler(svc *saved.Service, current saved.CurrentEntryProvider, prefs *preferences.Service, routes RouteEstimator, debug bool) *SavedHandler {
	return &SavedHandler{saved: svc, current: current, prefs: prefs, routes: routes, debug: debug}
}

func (h *SavedHandler) Save(c *gin.Context) {
	var cmd saved.SaveCommand
	if err := c.ShouldBindJSON(&cmd); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	l, err := h.saved.SaveCurrent(c.Request.Context(), cmd)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusCreated, l)
}

func (h *SavedHandler) List(c *gin.Context) {
	var q saved.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid query")
		return
	}
	ls, err := h.saved.List(c.Request.Context(), q)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	if ls == nil {
		ls = []*saved.Location{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"locations": ls})
}

func (h *SavedHandler) DeleteAll(c *gin.Context) {
	n, err := h.saved.DeleteAll(c.Request.Context())
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"deleted": n})
}

func (h *SavedHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	l, err := h.saved.Get(c.Request.Context(), id)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *SavedHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var cmd saved.UpdateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	l, err := h.saved.Update(c.Request.Context(), id, cmd)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *SavedHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.saved.Delete(c.Request.Context(), id); err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SavedHandler) ToggleFavorite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	l, err := h.saved.ToggleFavorite(c.Request.Context(), id)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *SavedHandler) Distance(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.saved.Distance(c.Request.Context(), id)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"id": id, "distance_m": d})
}

// Navigation returns deep links for the user's preferred route planner.
func (h *SavedHandler) Navigation(c *gin.Context) {
	l, ok := h.located(c)
	if !ok {
		return
	}
	prefs, err := h.prefs.Get(c.Request.Context())
	if err != nil {
		writePreferencesError(c, err, h.debug)
		return
	}
	name := maps.DisplayName(l.Description, l.Entry.Street)
	writeJSON(c, http.StatusOK, maps.NavigationLinks(prefs.RoutePlanner, l.Entry.Point(), name))
}

// Route estimates driving time from the current entry to the saved location.
func (h *SavedHandler) Route(c *gin.Context) {
	if h.routes == nil {
		writeError(c, http.StatusServiceUnavailable, "not_configured", "routing is not configured")
		return
	}
	l, ok := h.located(c)
	if !ok {
		return
	}
	origin, err := h.current.CurrentEntry()
	if err != nil {
		writeSavedError(c, err, h.debug)
		return
	}
	est, err := h.routes.GetTravelEstimate(c.Request.Context(), origin.Point(), l.Entry.Point())
	if errors.Is(err, maps.ErrNoRoute) {
		writeError(c, http.StatusNotFound, "no_route", err.Error())
		return
	}
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, "maps_error", "Unable to estimate the route. Please try again.")
		return
	}
	writeJSON(c, http.StatusOK, est)
}

// located loads the :id location and requires it to carry an entry.
func (h *SavedHandler) located(c *gin.Context) (*saved.Location, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	l, err := h.saved.Get(c.Request.Context(), id)
	if err != nil {
		writeSavedError(c, err, h.debug)
		return nil, false
	}
	if l.Entry == nil {
		writeError(c, http.StatusNotFound, "not_found", "saved location has no coordinates")
		return nil, false
	}
	return l, true
}
