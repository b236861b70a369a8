package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place_recommender/internal/app"
	"place_recommender/internal/domain"
	"place_recommender/internal/storage/memgraph"
)

var puertaDelSol = domain.Point{Lat: 40.4168, Lon: -3.7038}

// countingStore records how often the proximity query runs.
type countingStore struct {
	*memgraph.Graph
	points atomic.Int32
}

func (c *countingStore) PointsWithinDistance(ctx context.Context, ref domain.Point, r float64, base string) ([]domain.PlaceAtDistance, error) {
	c.points.Add(1)
	return c.Graph.PointsWithinDistance(ctx, ref, r, base)
}

// neighbourhood: p1 sits on the reference point, p2 ~111m north, p3 far away.
func neighbourhood(t *testing.T) *countingStore {
	t.Helper()
	g := memgraph.New()
	require.NoError(t, g.PutUser(domain.User{UserID: "u1"}))
	require.NoError(t, g.PutUser(domain.User{UserID: "newbie"}))
	require.NoError(t, g.PutPlace(domain.Place{PlaceID: "p1", Name: "Uno", Coordinates: &puertaDelSol, Categories: []string{"Coffee", "Bakery"}}))
	require.NoError(t, g.PutPlace(domain.Place{PlaceID: "p2", Name: "Dos", Coordinates: &domain.Point{Lat: 40.4178, Lon: -3.7038}, Categories: []string{"Coffee"}}))
	require.NoError(t, g.PutPlace(domain.Place{PlaceID: "p3", Name: "Tres", Coordinates: &domain.Point{Lat: 41.3874, Lon: 2.1686}, Categories: []string{"Coffee"}}))
	require.NoError(t, g.PutPlace(domain.Place{PlaceID: "px", Name: "Horno", Categories: []string{"Bakery"}}))
	require.NoError(t, g.PutCategory("Opera"))

	require.NoError(t, g.Rate("u1", "p1", 4))
	require.NoError(t, g.Rate("u1", "px", 3))
	return &countingStore{Graph: g}
}

func query(user string, radius float64) domain.RecommendQuery {
	return domain.RecommendQuery{
		UserID:            user,
		BaseCategory:      "Coffee",
		Lat:               puertaDelSol.Lat,
		Lon:               puertaDelSol.Lon,
		MaxDistanceMeters: radius,
	}
}

func ids(rs []domain.Recommendation) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Place.PlaceID
	}
	return out
}

func TestRecommend_RanksByAffinityMinusDistance(t *testing.T) {
	store := neighbourhood(t)
	svc := app.NewRecommendationService(store, app.RecommendOptions{})

	rs, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, ids(rs))

	// Coffee: 4, Bakery: (4+3)/2
	assert.InDelta(t, 7.5, rs[0].Score, 1e-9)
	assert.ElementsMatch(t, []domain.Match{{Name: "Coffee", AvgRating: 4}, {Name: "Bakery", AvgRating: 3.5}}, rs[0].Matches)
	assert.Equal(t, []string{"Bakery", "Coffee"}, rs[0].Place.Categories)
	assert.Equal(t, "Uno", rs[0].Place.Name)

	assert.InDelta(t, 4-rs[1].Distance/200, rs[1].Score, 1e-9)
	assert.InDelta(t, 111, rs[1].Distance, 2)
}

func TestRecommend_NoRatingsScoresByDistanceOnly(t *testing.T) {
	svc := app.NewRecommendationService(neighbourhood(t), app.RecommendOptions{})
	rs, err := svc.Recommend(context.Background(), query("newbie", 5000))
	require.NoError(t, err)
	require.Len(t, rs, 2)
	for _, r := range rs {
		assert.InDelta(t, -r.Distance/200, r.Score, 1e-9)
		assert.Empty(t, r.Matches)
	}
	assert.Equal(t, "p1", rs[0].Place.PlaceID)
}

func TestRecommend_UnknownUser(t *testing.T) {
	store := neighbourhood(t)
	svc := app.NewRecommendationService(store, app.RecommendOptions{})

	_, err := svc.Recommend(context.Background(), query("ghost", 5000))
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "User with userId ghost was not found", domain.Message(err))
	assert.Zero(t, store.points.Load())
}

func TestRecommend_UnknownCategory(t *testing.T) {
	store := neighbourhood(t)
	svc := app.NewRecommendationService(store, app.RecommendOptions{})

	q := query("u1", 5000)
	q.BaseCategory = "Cinema"
	_, err := svc.Recommend(context.Background(), q)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "Category Cinema not found", domain.Message(err))
	assert.Zero(t, store.points.Load())
}

func TestRecommend_DistanceCeiling(t *testing.T) {
	store := neighbourhood(t)
	svc := app.NewRecommendationService(store, app.RecommendOptions{})

	_, err := svc.Recommend(context.Background(), query("u1", 150000))
	require.ErrorIs(t, err, domain.ErrInvalidValue)
	assert.Equal(t, "Max distance parameter must be less or equal than 100000", domain.Message(err))
	assert.Zero(t, store.points.Load())

	// the ceiling itself is allowed
	_, err = svc.Recommend(context.Background(), query("u1", 100000))
	require.NoError(t, err)
}

func TestRecommend_CategoryWithoutPlaces(t *testing.T) {
	svc := app.NewRecommendationService(neighbourhood(t), app.RecommendOptions{})
	q := query("u1", 5000)
	q.BaseCategory = "Opera"
	rs, err := svc.Recommend(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestRecommend_Pagination(t *testing.T) {
	svc := app.NewRecommendationService(neighbourhood(t), app.RecommendOptions{})
	ctx := context.Background()

	all, err := svc.Recommend(ctx, query("u1", 100000))
	require.NoError(t, err)

	q := query("u1", 100000)
	q.Limit = 1
	first, err := svc.Recommend(ctx, q)
	require.NoError(t, err)
	q.Skip = 1
	rest, err := svc.Recommend(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, ids(all), append(ids(first), ids(rest)...))

	q.Skip = 10
	past, err := svc.Recommend(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestRecommend_Idempotent(t *testing.T) {
	svc := app.NewRecommendationService(neighbourhood(t), app.RecommendOptions{})
	a, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.NoError(t, err)
	b, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRecommend_WiderRadiusKeepsCloserCandidates(t *testing.T) {
	svc := app.NewRecommendationService(neighbourhood(t), app.RecommendOptions{DefaultLimit: 50})
	narrow, err := svc.Recommend(context.Background(), query("u1", 50))
	require.NoError(t, err)
	wide, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.NoError(t, err)

	assert.Equal(t, []string{"p1"}, ids(narrow))
	assert.Subset(t, ids(wide), ids(narrow))
}

func TestRecommend_StoreFailure(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	svc := app.NewRecommendationService(brokenStore{err: boom}, app.RecommendOptions{})
	_, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestRecommend_CallerCancellationIsNotUnavailable(t *testing.T) {
	svc := app.NewRecommendationService(brokenStore{err: context.Canceled}, app.RecommendOptions{})
	_, err := svc.Recommend(context.Background(), query("u1", 5000))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)
}
