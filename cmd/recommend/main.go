// Command recommend runs recommendations from the command line, one user at
// a time or as a paced batch, and seeds persistent graph backends.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"place_recommender/internal/adapters/observability"
	"place_recommender/internal/app"
	"place_recommender/internal/shared"
	"place_recommender/internal/storage"
)

var cfg shared.Config

var rootCmd = &cobra.Command{
	Use:           "recommend",
	Short:         "Proximity place recommendations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = shared.Load(); err != nil {
			return err
		}
		log.Logger = observability.NewLogger(cfg.App.Env, cfg.App.LogLevel)
		return nil
	},
}

// Query flags shared by one and batch.
var (
	flagCategory    string
	flagLat         float64
	flagLon         float64
	flagMaxDistance float64
	flagSkip        int
	flagLimit       int
)

func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagCategory, "category", "", "base category")
	f.Float64Var(&flagLat, "lat", 0, "reference latitude")
	f.Float64Var(&flagLon, "lon", 0, "reference longitude")
	f.Float64Var(&flagMaxDistance, "max-distance", 1000, "search radius in meters")
	f.IntVar(&flagSkip, "skip", 0, "results to skip")
	f.IntVar(&flagLimit, "limit", 0, "page size (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("category")
}

// openService opens the configured backend and builds the recommendation service.
func openService(ctx context.Context) (*app.RecommendationService, func(), error) {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := app.NewRecommendationService(backend.Store, app.RecommendOptions{
		MaxDistanceMeters: cfg.Recommend.MaxDistance,
		DistanceScale:     cfg.Recommend.DistanceScale,
		DefaultLimit:      cfg.Recommend.DefaultLimit,
	})
	return svc, func() { _ = backend.Close(context.Background()) }, nil
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := Execute(ctx); err != nil {
		log.Error().Err(err).Msg("recommend failed")
		stop()
		os.Exit(1)
	}
}
