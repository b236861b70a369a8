package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place_recommender/internal/app"
	"place_recommender/internal/domain"
	"place_recommender/internal/storage/memgraph"
)

// ---- fakes ----

type fakeCache struct {
	store map[string]any
	gets  int
	sets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.gets++
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.Place:
		*d = v.(domain.Place)
	case *domain.User:
		*d = v.(domain.User)
	case *domain.Category:
		*d = v.(domain.Category)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.sets++
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

// brokenStore fails every call with an infrastructure error.
type brokenStore struct{ err error }

func (b brokenStore) FindNode(context.Context, domain.Label, string) (domain.Node, error) {
	return domain.Node{}, b.err
}
func (b brokenStore) PointsWithinDistance(context.Context, domain.Point, float64, string) ([]domain.PlaceAtDistance, error) {
	return nil, b.err
}
func (b brokenStore) CategoriesOf(context.Context, []string) (map[string][]string, error) {
	return nil, b.err
}
func (b brokenStore) RatedCategoriesWithMeanRating(context.Context, string) (map[string]float64, error) {
	return nil, b.err
}
func (b brokenStore) FeaturesOf(context.Context, domain.Label, string) ([]string, error) {
	return nil, b.err
}
func (b brokenStore) Ping(context.Context) error { return b.err }

func ptr[T any](v T) *T { return &v }

func catalog(t *testing.T) *memgraph.Graph {
	t.Helper()
	g := memgraph.New()
	require.NoError(t, g.PutUser(domain.User{UserID: "u1", Born: ptr("1990-04-01"), Gender: ptr("f"), Features: []string{"wifi"}}))
	require.NoError(t, g.PutPlace(domain.Place{
		PlaceID:     "p1",
		Name:        "La Mallorquina",
		FullAddress: ptr("Calle Mayor 2, Madrid"),
		Coordinates: &domain.Point{Lat: 40.4168, Lon: -3.7038},
		ExternalIDs: map[string]string{"yelpId": "y-1"},
		Attributes:  map[string]any{"price": "$$"},
		Categories:  []string{"Bakery", "Coffee"},
		Features:    []string{"terrace", "wifi"},
	}))
	return g
}

// ---- tests ----

func TestGetPlace_CacheMissThenHit(t *testing.T) {
	cache := &fakeCache{}
	q := app.NewQueryService(catalog(t), cache, 10*time.Minute)
	ctx := context.Background()

	p, err := q.GetPlace(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "La Mallorquina", p.Name)
	require.NotNil(t, p.FullAddress)
	assert.Equal(t, "Calle Mayor 2, Madrid", *p.FullAddress)
	assert.Equal(t, &domain.Point{Lat: 40.4168, Lon: -3.7038}, p.Coordinates)
	assert.Equal(t, map[string]string{"yelpId": "y-1"}, p.ExternalIDs)
	assert.Equal(t, map[string]any{"price": "$$"}, p.Attributes)
	assert.Equal(t, []string{"Bakery", "Coffee"}, p.Categories)
	assert.Equal(t, []string{"terrace", "wifi"}, p.Features)
	assert.Equal(t, 1, cache.sets)

	// second call is served from the cache
	cache.store["place:p1"] = domain.Place{PlaceID: "p1", Name: "cached"}
	p, err = q.GetPlace(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "cached", p.Name)
	assert.Equal(t, 1, cache.sets)
}

func TestEvictCatalog(t *testing.T) {
	cache := &fakeCache{}
	g := catalog(t)
	q := app.NewQueryService(g, cache, 10*time.Minute)
	ctx := context.Background()

	_, err := q.GetPlace(ctx, "p1")
	require.NoError(t, err)
	_, err = q.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, cache.store, "place:p1")
	assert.Contains(t, cache.store, "user:u1")

	require.NoError(t, g.PutPlace(domain.Place{PlaceID: "p1", Name: "Renamed", Categories: []string{"Coffee"}}))
	require.NoError(t, app.EvictCatalog(ctx, cache, domain.LabelPlace, "p1", "missing"))
	assert.NotContains(t, cache.store, "place:p1")
	assert.Contains(t, cache.store, "user:u1")

	p, err := q.GetPlace(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, []string{"Coffee"}, p.Categories)

	assert.NoError(t, app.EvictCatalog(ctx, nil, domain.LabelUser, "u1"))
}

func TestGetPlace_NotFound(t *testing.T) {
	q := app.NewQueryService(catalog(t), nil, time.Minute)
	_, err := q.GetPlace(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "Place with placeId nope was not found", domain.Message(err))
}

func TestGetUser(t *testing.T) {
	q := app.NewQueryService(catalog(t), &fakeCache{}, time.Minute)
	u, err := q.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, ptr("1990-04-01"), u.Born)
	assert.Equal(t, ptr("f"), u.Gender)
	assert.Equal(t, []string{"wifi"}, u.Features)

	_, err = q.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "User with userId ghost was not found", domain.Message(err))
}

func TestGetCategory(t *testing.T) {
	q := app.NewQueryService(catalog(t), nil, time.Minute)
	c, err := q.GetCategory(context.Background(), "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", c.Name)

	_, err = q.GetCategory(context.Background(), "Opera")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "Category Opera not found", domain.Message(err))
}

func TestQueries_StoreFailureIsUnavailable(t *testing.T) {
	boom := errors.New("connection reset")
	q := app.NewQueryService(brokenStore{err: boom}, nil, time.Minute)

	_, err := q.GetPlace(context.Background(), "p1")
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, q.Ping(context.Background()), domain.ErrUnavailable)
}

func TestQueries_CallerCancellationPassesThrough(t *testing.T) {
	q := app.NewQueryService(brokenStore{err: fmt.Errorf("find node: %w", context.Canceled)}, nil, time.Minute)

	_, err := q.GetPlace(context.Background(), "p1")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)
	assert.False(t, domain.IsDomain(err))
}
