// Package neo4jgraph serves the place graph from Neo4j.
package neo4jgraph

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"place_recommender/internal/domain"
)

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store implements domain.GraphStore on a Neo4j database.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ domain.GraphStore = (*Store)(nil)

// Open creates the driver and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	log.Info().Str("uri", cfg.URI).Str("database", cfg.Database).Msg("connected to neo4j")
	return &Store{driver: driver, database: cfg.Database}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.driver.Close(ctx) }

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// read runs query in a managed read transaction and returns every record.
func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
}

func (s *Store) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	return neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
}

// ---- domain.GraphStore ----

func (s *Store) FindNode(ctx context.Context, label domain.Label, key string) (domain.Node, error) {
	if !label.Valid() {
		return domain.Node{}, domain.InvalidValuef("unknown label %q", label)
	}
	recs, err := s.read(ctx, findNodeCypher(label), map[string]any{"key": key})
	if err != nil {
		return domain.Node{}, fmt.Errorf("find %s: %w", label, err)
	}
	if len(recs) == 0 {
		return domain.Node{}, domain.NotFoundf("%s %s was not found", label, key)
	}
	n, ok := nodeFromRecord(recs[0], "n")
	if !ok {
		return domain.Node{}, fmt.Errorf("find %s: unexpected record shape", label)
	}
	return domain.Node{Label: label, Key: key, Props: convertProps(n.Props)}, nil
}

func (s *Store) PointsWithinDistance(ctx context.Context, ref domain.Point, radiusMeters float64, baseCategory string) ([]domain.PlaceAtDistance, error) {
	if !ref.OnEarth() {
		return []domain.PlaceAtDistance{}, nil
	}
	recs, err := s.read(ctx, pointsWithinDistanceCypher, map[string]any{
		"baseCategory": baseCategory,
		"lat":          ref.Lat,
		"lon":          ref.Lon,
		"radius":       radiusMeters,
	})
	if err != nil {
		return nil, fmt.Errorf("points within distance: %w", err)
	}
	out := make([]domain.PlaceAtDistance, 0, len(recs))
	for _, rec := range recs {
		n, ok := nodeFromRecord(rec, "p")
		if !ok {
			continue
		}
		d, ok := float64FromRecord(rec, "distance")
		if !ok {
			continue
		}
		props := convertProps(n.Props)
		key, _ := props[domain.LabelPlace.KeyProp()].(string)
		out = append(out, domain.PlaceAtDistance{
			Node:     domain.Node{Label: domain.LabelPlace, Key: key, Props: props},
			Distance: d,
		})
	}
	return out, nil
}

func (s *Store) CategoriesOf(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}
	recs, err := s.read(ctx, categoriesOfCypher, map[string]any{"ids": placeIDs})
	if err != nil {
		return nil, fmt.Errorf("categories of: %w", err)
	}
	for _, rec := range recs {
		if id := stringFromRecord(rec, "id"); id != "" {
			out[id] = stringSliceFromRecord(rec, "categories")
		}
	}
	return out, nil
}

func (s *Store) RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error) {
	recs, err := s.read(ctx, ratedCategoriesCypher, map[string]any{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("rated categories: %w", err)
	}
	out := make(map[string]float64, len(recs))
	for _, rec := range recs {
		cat := stringFromRecord(rec, "category")
		if mean, ok := float64FromRecord(rec, "mean"); ok && cat != "" {
			out[cat] = mean
		}
	}
	return out, nil
}

func (s *Store) FeaturesOf(ctx context.Context, label domain.Label, key string) ([]string, error) {
	if label != domain.LabelUser && label != domain.LabelPlace {
		return nil, domain.InvalidValuef("label %q has no features", label)
	}
	recs, err := s.read(ctx, featuresOfCypher(label), map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("features of: %w", err)
	}
	var out []string
	for _, rec := range recs {
		out = append(out, stringFromRecord(rec, "name"))
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.read(ctx, pingCypher, nil)
	return err
}

// ---- writes ----

func (s *Store) UpsertCategory(ctx context.Context, name string) error {
	_, err := s.write(ctx, mergeCategoryCypher, map[string]any{"name": name})
	return err
}

func (s *Store) UpsertFeature(ctx context.Context, name string) error {
	_, err := s.write(ctx, mergeFeatureCypher, map[string]any{"name": name})
	return err
}

func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	if u.Gender != nil && *u.Gender != "m" && *u.Gender != "f" {
		return domain.InvalidValuef("gender must be m or f, got %q", *u.Gender)
	}
	_, err := s.write(ctx, mergeUserCypher, map[string]any{
		"userId":   u.UserID,
		"gender":   optional(u.Gender),
		"born":     optional(u.Born),
		"features": orEmpty(u.Features),
	})
	return err
}

// UpsertPlace merges the place and replaces its category and feature links.
// Nested attribute values are stored as JSON strings; Neo4j properties
// cannot hold maps.
func (s *Store) UpsertPlace(ctx context.Context, p domain.Place) error {
	props := make(map[string]any, len(p.Attributes)+len(p.ExternalIDs)+2)
	for k, v := range p.Attributes {
		pv, err := propertyValue(v)
		if err != nil {
			return fmt.Errorf("place %s attribute %s: %w", p.PlaceID, k, err)
		}
		props[k] = pv
	}
	for k, v := range p.ExternalIDs {
		props[k] = v
	}
	if p.Name != "" {
		props["name"] = p.Name
	}
	if p.FullAddress != nil {
		props["fullAddress"] = *p.FullAddress
	}
	var lat, lon any
	if p.Coordinates != nil {
		lat, lon = p.Coordinates.Lat, p.Coordinates.Lon
	}
	_, err := s.write(ctx, mergePlaceCypher, map[string]any{
		"placeId":    p.PlaceID,
		"props":      props,
		"lat":        lat,
		"lon":        lon,
		"categories": orEmpty(p.Categories),
		"features":   orEmpty(p.Features),
	})
	return err
}

func (s *Store) Rate(ctx context.Context, userID, placeID string, rating float64) error {
	recs, err := s.write(ctx, rateCypher, map[string]any{"userId": userID, "placeId": placeID, "rating": rating})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return domain.NotFoundf("user %s or place %s was not found", userID, placeID)
	}
	if n, _ := recs[0].Get("n"); n == int64(0) {
		return domain.NotFoundf("user %s or place %s was not found", userID, placeID)
	}
	return nil
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func propertyValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	case []string, []int64, []float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
