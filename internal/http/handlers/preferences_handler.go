// README: Preferences handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"locater/internal/modules/preferences"
)

type PreferencesHandler struct {
	prefs *preferences.Service
	debug bool
}

func NewPreferencesHandler(svc *preferences.Service, debug bool) *PreferencesHandler {
	return &PreferencesHandler{prefs: svc, debug: debug}
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	p, err := h.prefs.Get(c.Request.Context())
	if err != nil {
		writePreferencesError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *PreferencesHandler) Update(c *gin.Context) {
	var patch preferences.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	p, err := h.prefs.Update(c.Request.Context(), patch)
	if err != nil {
		writePreferencesError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
