package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	redisad "place_recommender/internal/adapters/redis"
	"place_recommender/internal/app"
	"place_recommender/internal/domain"
	"place_recommender/internal/storage"
	"place_recommender/internal/storage/memgraph"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.json>",
	Short: "Write a JSON fixture into the configured neo4j or mysql backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		fx, err := memgraph.ReadFixture(f)
		if err != nil {
			return fmt.Errorf("read fixture: %w", err)
		}

		backend, err := storage.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = backend.Close(cmd.Context()) }()
		if backend.Writer == nil {
			return fmt.Errorf("backend %s is not writable; use GRAPH_FIXTURE instead", backend.Name)
		}
		if err := storage.Seed(cmd.Context(), backend.Writer, fx); err != nil {
			return err
		}

		if cfg.Redis.Addr == "" {
			return nil
		}
		rc := redisad.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()
		if err := evictSeeded(cmd.Context(), rc, fx); err != nil {
			return fmt.Errorf("evict cached catalog entries: %w", err)
		}
		return nil
	},
}

// evictSeeded drops the API's cached lookups of every node the fixture wrote.
func evictSeeded(ctx context.Context, c domain.Cache, fx memgraph.Fixture) error {
	users := make([]string, len(fx.Users))
	for i, u := range fx.Users {
		users[i] = u.UserID
	}
	places := make([]string, len(fx.Places))
	cats := append([]string(nil), fx.Categories...)
	for i, p := range fx.Places {
		places[i] = p.PlaceID
		cats = append(cats, p.Categories...)
	}
	err := errors.Join(
		app.EvictCatalog(ctx, c, domain.LabelUser, users...),
		app.EvictCatalog(ctx, c, domain.LabelPlace, places...),
		app.EvictCatalog(ctx, c, domain.LabelCategory, cats...),
	)
	if err == nil {
		log.Info().Int("users", len(users)).Int("places", len(places)).Msg("cached catalog entries evicted")
	}
	return err
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
