package httpserver_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "place_recommender/internal/adapters/http_server"
	"place_recommender/internal/app"
	"place_recommender/internal/domain"
	"place_recommender/internal/storage/memgraph"
)

func pstr(s string) *string { return &s }

func newAPI(t *testing.T, store domain.GraphStore, opts httpserver.Options) http.Handler {
	t.Helper()
	srv := httpserver.New(opts)
	srv.MountHandlers(&httpserver.Handlers{
		Q: app.NewQueryService(store, nil, time.Minute),
		R: app.NewRecommendationService(store, app.RecommendOptions{}),
	})
	return srv.Mux()
}

func seeded(t *testing.T) *memgraph.Graph {
	t.Helper()
	g := memgraph.New()
	require.NoError(t, g.PutUser(domain.User{UserID: "u1", Gender: pstr("m")}))
	require.NoError(t, g.PutPlace(domain.Place{
		PlaceID: "p1", Name: "Uno", FullAddress: pstr("Puerta del Sol 1"),
		Coordinates: &domain.Point{Lat: 40.4168, Lon: -3.7038},
		Attributes:  map[string]any{"price": "$$"},
		Categories:  []string{"Coffee", "Bakery"},
	}))
	require.NoError(t, g.PutPlace(domain.Place{
		PlaceID: "p2", Name: "Dos", Coordinates: &domain.Point{Lat: 40.4178, Lon: -3.7038}, Categories: []string{"Coffee"},
	}))
	require.NoError(t, g.Rate("u1", "p1", 4))
	return g
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRecommend_OK(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})
	rr := get(t, h, "/v1/places/recommend/Coffee/for/u1/near/40.4168/-3.7038/with-max-distance/1000")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("ETag"))

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0]["placeId"])
	assert.Equal(t, "Uno", docs[0]["name"])
	assert.Equal(t, "$$", docs[0]["price"])
	assert.InDelta(t, 8.0, docs[0]["score"], 1e-9) // Coffee 4 + Bakery 4
	assert.Len(t, docs[0]["matches"], 2)
	assert.Equal(t, "p2", docs[1]["placeId"])
}

func TestRecommend_Pagination(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})
	rr := get(t, h, "/v1/places/recommend/Coffee/for/u1/near/40.4168/-3.7038/with-max-distance/1000?skip=1&limit=1")
	require.Equal(t, http.StatusOK, rr.Code)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "p2", docs[0]["placeId"])

	rr = get(t, h, "/v1/places/recommend/Coffee/for/u1/near/40.4168/-3.7038/with-max-distance/1000?skip=5")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestRecommend_Errors(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})

	cases := []struct {
		name   string
		path   string
		status int
		detail string
	}{
		{"unknown user", "/v1/places/recommend/Coffee/for/ghost/near/40.4/-3.7/with-max-distance/1000", 404, "User with userId ghost was not found"},
		{"unknown category", "/v1/places/recommend/Opera/for/u1/near/40.4/-3.7/with-max-distance/1000", 404, "Category Opera not found"},
		{"distance ceiling", "/v1/places/recommend/Coffee/for/u1/near/40.4/-3.7/with-max-distance/150000", 400, "Max distance parameter must be less or equal than 100000"},
		{"bad lat", "/v1/places/recommend/Coffee/for/u1/near/north/-3.7/with-max-distance/1000", 400, "lat must be a number"},
		{"bad limit", "/v1/places/recommend/Coffee/for/u1/near/40.4/-3.7/with-max-distance/1000?limit=ten", 400, "limit must be an integer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := get(t, h, tc.path)
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var p map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			assert.Equal(t, tc.detail, p["detail"])
		})
	}
}

func TestRecommend_CoordinatesNotRangeChecked(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})
	for _, path := range []string{
		"/v1/places/recommend/Coffee/for/u1/near/95/-3.7038/with-max-distance/1000",
		"/v1/places/recommend/Coffee/for/u1/near/40.4168/-200/with-max-distance/1000",
	} {
		rr := get(t, h, path)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, "[]", rr.Body.String())
	}
}

func TestCatalogRoutes(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})

	rr := get(t, h, "/v1/places/p1")
	require.Equal(t, http.StatusOK, rr.Code)
	var p domain.Place
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "Uno", p.Name)
	assert.Equal(t, []string{"Bakery", "Coffee"}, p.Categories)

	rr = get(t, h, "/v1/users/u1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"userId":"u1"`)

	rr = get(t, h, "/v1/categories/Coffee")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/places/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/users/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/categories/Opera").Code)
}

func TestETag_NotModified(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})
	first := get(t, h, "/v1/places/p1")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/v1/places/p1", nil)
	req.Header.Set("If-None-Match", etag)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{})
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestRateLimit(t *testing.T) {
	h := newAPI(t, seeded(t), httpserver.Options{RateLimitRequests: 1, RateLimitWindow: time.Minute})
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/healthz").Code)
}

// failingStore fails every query with err.
type failingStore struct{ err error }

func (f failingStore) FindNode(context.Context, domain.Label, string) (domain.Node, error) {
	return domain.Node{}, f.err
}
func (f failingStore) PointsWithinDistance(context.Context, domain.Point, float64, string) ([]domain.PlaceAtDistance, error) {
	return nil, f.err
}
func (f failingStore) CategoriesOf(context.Context, []string) (map[string][]string, error) {
	return nil, f.err
}
func (f failingStore) RatedCategoriesWithMeanRating(context.Context, string) (map[string]float64, error) {
	return nil, f.err
}
func (f failingStore) FeaturesOf(context.Context, domain.Label, string) ([]string, error) {
	return nil, f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }

func TestUnavailableMapsTo503(t *testing.T) {
	store := failingStore{err: domain.Unavailable(errors.New("bolt: timeout"), "graph store circuit open")}
	h := newAPI(t, store, httpserver.Options{})
	rr := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	rr = get(t, h, "/v1/places/recommend/Coffee/for/u1/near/40.4/-3.7/with-max-distance/1000")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCanceledRequestIsNotA5xx(t *testing.T) {
	h := newAPI(t, failingStore{err: fmt.Errorf("find node: %w", context.Canceled)}, httpserver.Options{})
	rr := get(t, h, "/v1/places/p1")
	assert.Equal(t, 499, rr.Code)
	rr = get(t, h, "/v1/places/recommend/Coffee/for/u1/near/40.4/-3.7/with-max-distance/1000")
	assert.Equal(t, 499, rr.Code)
}
