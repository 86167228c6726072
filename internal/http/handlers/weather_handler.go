// README: Weather handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"locater/internal/modules/weather"
	"locater/internal/types"
)

type WeatherHandler struct {
	weather *weather.Service
}

func NewWeatherHandler(svc *weather.Service) *WeatherHandler {
	return &WeatherHandler{weather: svc}
}

type weatherQuery struct {
	Lat *float64 `form:"lat" binding:"required"`
	Lng *float64 `form:"lng" binding:"required"`
}

func (h *WeatherHandler) Current(c *gin.Context) {
	var q weatherQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_location", weather.FriendlyMessage(weather.ErrInvalidLocation))
		return
	}
	report, err := h.weather.Fetch(c.Request.Context(), types.Point{Lat: *q.Lat, Lng: *q.Lng})
	if err != nil {
		writeWeatherError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}
