// README: Device handlers: websocket session plus REST fallbacks for phones that poll.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"locater/internal/modules/device"
)

const (
	defaultPollWait = 25 * time.Second
	maxPollWait     = 60 * time.Second
)

type DeviceHandler struct {
	bridge *device.Bridge
}

func NewDeviceHandler(bridge *device.Bridge) *DeviceHandler {
	return &DeviceHandler{bridge: bridge}
}

func (h *DeviceHandler) WS(c *gin.Context) {
	h.bridge.ServeWS(c.Writer, c.Request)
}

type pollQuery struct {
	Wait time.Duration `form:"wait"`
}

// Commands long-polls for the next queued command. 204 means nothing arrived
// within the wait.
func (h *DeviceHandler) Commands(c *gin.Context) {
	var q pollQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid wait")
		return
	}
	wait := q.Wait
	if wait <= 0 {
		wait = defaultPollWait
	}
	wait = min(wait, maxPollWait)

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	msg, err := h.bridge.NextCommand(ctx)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, msg)
}

func (h *DeviceHandler) Authorization(c *gin.Context) {
	h.report(c, device.MsgAuthorization)
}

func (h *DeviceHandler) Position(c *gin.Context) {
	h.report(c, device.MsgPosition)
}

func (h *DeviceHandler) PositionError(c *gin.Context) {
	h.report(c, device.MsgPositionError)
}

func (h *DeviceHandler) report(c *gin.Context, typ device.MessageType) {
	var msg device.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	msg.Type = typ
	if err := h.bridge.Handle(msg); err != nil {
		writeDeviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
