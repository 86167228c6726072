// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"locater/internal/http/handlers"
	"locater/internal/http/middleware"
	"locater/internal/modules/device"
	"locater/internal/modules/location"
	"locater/internal/modules/preferences"
	"locater/internal/modules/saved"
	"locater/internal/modules/transfer"
	"locater/internal/modules/weather"
)

// ServerDeps carries the wired services. Routes may be nil when no Maps key
// is configured. A zero MaxImportSize uses the handler default.
type ServerDeps struct {
	Coordinator   *location.Coordinator
	Bridge        *device.Bridge
	Saved         *saved.Service
	Transfer      *transfer.Service
	Weather       *weather.Service
	Preferences   *preferences.Service
	Routes        handlers.RouteEstimator
	APIToken      string
	MaxImportSize int64
	Debug         bool
	Log           zerolog.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	d := s.deps
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(d.APIToken))

	loc := handlers.NewLocationHandler(d.Coordinator, d.Debug)
	api.POST("/location/acquire", loc.Acquire)
	api.GET("/location/current", loc.Current)
	api.GET("/location/entry", loc.Entry)

	dev := handlers.NewDeviceHandler(d.Bridge)
	api.GET("/device/ws", dev.WS)
	api.GET("/device/commands", dev.Commands)
	api.PUT("/device/authorization", dev.Authorization)
	api.POST("/device/position", dev.Position)
	api.POST("/device/position-error", dev.PositionError)

	sv := handlers.NewSavedHandler(d.Saved, d.Coordinator, d.Preferences, d.Routes, d.Debug)
	api.POST("/saved", sv.Save)
	api.GET("/saved", sv.List)
	api.DELETE("/saved", sv.DeleteAll)
	api.GET("/saved/:id", sv.Get)
	api.PATCH("/saved/:id", sv.Update)
	api.DELETE("/saved/:id", sv.Delete)
	api.POST("/saved/:id/favorite", sv.ToggleFavorite)
	api.GET("/saved/:id/distance", sv.Distance)
	api.GET("/saved/:id/navigation", sv.Navigation)
	api.GET("/saved/:id/route", sv.Route)

	tr := handlers.NewTransferHandler(d.Transfer, d.MaxImportSize, d.Debug)
	api.GET("/transfer/export", tr.Export)
	api.POST("/transfer/export/s3", tr.Upload)
	api.POST("/transfer/import", tr.Import)

	api.GET("/weather", handlers.NewWeatherHandler(d.Weather).Current)

	prefs := handlers.NewPreferencesHandler(d.Preferences, d.Debug)
	api.GET("/preferences", prefs.Get)
	api.PUT("/preferences", prefs.Update)

	return r
}
