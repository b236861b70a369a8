package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "place_recommender/internal/adapters/http_server"
	"place_recommender/internal/adapters/observability"
	redisad "place_recommender/internal/adapters/redis"
	"place_recommender/internal/app"
	"place_recommender/internal/domain"
	"place_recommender/internal/shared"
	"place_recommender/internal/storage"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.HTTP.MetricsAddr, reg)

	// graph store
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Graph.Backend).Msg("graph store unavailable")
	}
	defer func() { _ = backend.Close(context.Background()) }()

	// cache (optional)
	var cache domain.Cache
	if cfg.Redis.Addr != "" {
		rc := redisad.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; catalog lookups will not be cached")
		}
		defer func() { _ = rc.Close() }()
		cache = rc
	}

	q := app.NewQueryService(backend.Store, cache, cfg.Redis.CacheTTL)
	rs := app.NewRecommendationService(backend.Store, app.RecommendOptions{
		MaxDistanceMeters: cfg.Recommend.MaxDistance,
		DistanceScale:     cfg.Recommend.DistanceScale,
		DefaultLimit:      cfg.Recommend.DefaultLimit,
	})

	// http
	srv := server.New(server.Options{
		Timeout:           cfg.HTTP.Timeout,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, R: rs})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Str("backend", backend.Name).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
