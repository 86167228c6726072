// README: Location handlers: acquire, current snapshot, current entry.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"locater/internal/modules/location"
)

type LocationHandler struct {
	coord *location.Coordinator
	debug bool
}

func NewLocationHandler(coord *location.Coordinator, debug bool) *LocationHandler {
	return &LocationHandler{coord: coord, debug: debug}
}

// Acquire blocks until the acquisition finishes. Disconnecting abandons it.
func (h *LocationHandler) Acquire(c *gin.Context) {
	entry, err := h.coord.Acquire(c.Request.Context())
	if err != nil {
		writeLocationError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, entry)
}

func (h *LocationHandler) Current(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.coord.Current())
}

func (h *LocationHandler) Entry(c *gin.Context) {
	entry, err := h.coord.CurrentEntry()
	if err != nil {
		writeLocationError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, entry)
}
