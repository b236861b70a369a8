// Package storage picks the configured graph backend and puts the circuit
// breaker in front of it.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"place_recommender/internal/adapters/resilience"
	"place_recommender/internal/domain"
	"place_recommender/internal/shared"
	"place_recommender/internal/storage/memgraph"
	"place_recommender/internal/storage/mysql"
	"place_recommender/internal/storage/neo4jgraph"
)

// Writer is the write side shared by the persistent backends.
type Writer interface {
	UpsertCategory(ctx context.Context, name string) error
	UpsertFeature(ctx context.Context, name string) error
	UpsertUser(ctx context.Context, u domain.User) error
	UpsertPlace(ctx context.Context, p domain.Place) error
	Rate(ctx context.Context, userID, placeID string, rating float64) error
}

var (
	_ Writer = (*mysql.Repo)(nil)
	_ Writer = (*neo4jgraph.Store)(nil)
)

// Backend is an opened graph store. Store is guarded; Writer is nil for the
// in-memory backend.
type Backend struct {
	Name   string
	Store  domain.GraphStore
	Writer Writer
	Close  func(context.Context) error
}

func Open(ctx context.Context, cfg shared.Config) (*Backend, error) {
	b := &Backend{Name: cfg.Graph.Backend, Close: func(context.Context) error { return nil }}
	var raw domain.GraphStore

	switch cfg.Graph.Backend {
	case "memory":
		g := memgraph.New()
		if cfg.Graph.Fixture != "" {
			var err error
			if g, err = memgraph.LoadFile(cfg.Graph.Fixture); err != nil {
				return nil, fmt.Errorf("load fixture %s: %w", cfg.Graph.Fixture, err)
			}
		}
		raw = g

	case "neo4j":
		s, err := neo4jgraph.Open(ctx, neo4jgraph.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			return nil, err
		}
		raw, b.Writer, b.Close = s, s, s.Close

	case "mysql":
		db, err := mysql.Open(ctx, cfg.MySQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
		repo := mysql.New(db)
		raw, b.Writer = repo, repo
		b.Close = func(context.Context) error { return db.Close() }

	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.Graph.Backend)
	}

	b.Store = resilience.NewGuard(raw, resilience.Options{
		Name:         "graph-" + cfg.Graph.Backend,
		Backend:      cfg.Graph.Backend,
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	})
	log.Info().Str("backend", b.Name).Msg("graph store ready")
	return b, nil
}

// Seed writes a fixture through w: vocabulary first, then nodes, then ratings.
func Seed(ctx context.Context, w Writer, fx memgraph.Fixture) error {
	for _, c := range fx.Categories {
		if err := w.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("category %s: %w", c, err)
		}
	}
	for _, f := range fx.Features {
		if err := w.UpsertFeature(ctx, f); err != nil {
			return fmt.Errorf("feature %s: %w", f, err)
		}
	}
	for _, u := range fx.Users {
		if err := w.UpsertUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.UserID, err)
		}
	}
	for _, p := range fx.Places {
		if err := w.UpsertPlace(ctx, p); err != nil {
			return fmt.Errorf("place %s: %w", p.PlaceID, err)
		}
	}
	for _, r := range fx.Ratings {
		if err := w.Rate(ctx, r.UserID, r.PlaceID, r.Rating); err != nil {
			return fmt.Errorf("rating %s -> %s: %w", r.UserID, r.PlaceID, err)
		}
	}
	log.Info().
		Int("users", len(fx.Users)).
		Int("places", len(fx.Places)).
		Int("ratings", len(fx.Ratings)).
		Msg("fixture seeded")
	return nil
}
