// README: Entry point; loads config, wires storage and services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"locater/internal/config"
	httptransport "locater/internal/http"
	"locater/internal/http/handlers"
	"locater/internal/infra"
	"locater/internal/logger"
	"locater/internal/maps"
	"locater/internal/modules/device"
	"locater/internal/modules/location"
	"locater/internal/modules/preferences"
	"locater/internal/modules/saved"
	"locater/internal/modules/transfer"
	"locater/internal/modules/weather"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log := logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("config")
	}
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage init")
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init")
		}
		defer rdb.Close()
	}

	var geocoder location.ReverseGeocoder
	var routes handlers.RouteEstimator
	if cfg.Maps.APIKey != "" {
		client, err := maps.NewClient(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("maps init")
		}
		geocoder = maps.NewGeocoder(client, cfg.Maps.Language)
		routes = maps.NewRouteService(client, cfg.Maps.Language)
	} else {
		log.Warn().Msg("LOCATER_MAPS_API_KEY not set; entries will be unlabelled and routing is disabled")
	}

	bridge := device.NewBridge(logger.Component("device"))
	coord := location.NewCoordinator(bridge, bridge, geocoder, location.Options{
		FixTimeout:           cfg.Location.FixTimeout,
		AuthorizationTimeout: cfg.Location.AuthorizationTimeout,
		GeocodeTimeout:       cfg.Location.GeocodeTimeout,
	}, logger.Component("location"))
	bridge.SetAuthorizationListener(coord)
	go forwardState(ctx, coord, bridge)

	savedSvc := saved.NewService(store, coord, logger.Component("saved"))
	if _, err := savedSvc.SweepOrphans(ctx); err != nil {
		log.Error().Err(err).Msg("orphan sweep failed")
	}

	var sink *transfer.S3Sink
	if cfg.Export.S3Bucket != "" {
		client, err := infra.NewS3(ctx, cfg.Export.S3Region)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 init")
		}
		sink = transfer.NewS3Sink(client, cfg.Export.S3Bucket, cfg.Export.S3Prefix)
	}

	var weatherCache weather.Cache = weather.NewMemoryCache(cfg.Weather.CacheTTL, cfg.Weather.CacheSize)
	var prefsStore preferences.Store = preferences.NewMemoryStore()
	if rdb != nil {
		weatherCache = weather.NewRedisCache(rdb, cfg.Weather.CacheTTL)
		prefsStore = preferences.NewRedisStore(rdb)
	}
	weatherSvc := weather.NewService(
		weather.NewOpenMeteo(cfg.Weather.BaseURL, &http.Client{Timeout: 10 * time.Second}),
		weatherCache,
		weather.Options{Attempts: cfg.Weather.Attempts, Backoff: cfg.Weather.Backoff},
		logger.Component("weather"),
	)

	srv := httptransport.NewServer(httptransport.ServerDeps{
		Coordinator:   coord,
		Bridge:        bridge,
		Saved:         savedSvc,
		Transfer:      transfer.NewService(store, sink, logger.Component("transfer")),
		Weather:       weatherSvc,
		Preferences:   preferences.NewService(prefsStore, logger.Component("preferences")),
		Routes:        routes,
		APIToken:      cfg.HTTP.APIToken,
		MaxImportSize: cfg.HTTP.MaxImportBytes,
		Debug:         cfg.Debug,
		Log:           logger.Component("http"),
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Str("storage", cfg.Storage.Driver).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("stopped")
}

func openStore(ctx context.Context, cfg config.Config) (saved.Repository, func(), error) {
	if cfg.Storage.Driver == "sqlite" {
		s, err := saved.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	s := saved.NewStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// forwardState pushes every snapshot to an attached device so its UI follows
// the coordinator.
func forwardState(ctx context.Context, coord *location.Coordinator, bridge *device.Bridge) {
	ch, unsubscribe := coord.Subscribe()
	defer unsubscribe()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			bridge.PushState(snap)
		case <-ctx.Done():
			return
		}
	}
}
