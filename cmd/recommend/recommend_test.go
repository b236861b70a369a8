package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place_recommender/internal/domain"
	"place_recommender/internal/storage/memgraph"
)

type fakeRecommender struct {
	calls atomic.Int32
}

func (f *fakeRecommender) Recommend(_ context.Context, q domain.RecommendQuery) ([]domain.Recommendation, error) {
	f.calls.Add(1)
	if strings.HasPrefix(q.UserID, "ghost") {
		return nil, domain.NotFoundf("User with userId %s was not found", q.UserID)
	}
	return []domain.Recommendation{{
		Place:    domain.Place{PlaceID: "p-" + q.UserID, Name: q.BaseCategory},
		Distance: 10,
		Score:    -0.05,
	}}, nil
}

func readLines(t *testing.T, b *bytes.Buffer) []batchLine {
	t.Helper()
	var out []batchLine
	sc := bufio.NewScanner(b)
	for sc.Scan() {
		var l batchLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		out = append(out, l)
	}
	return out
}

func TestCommands_Definition(t *testing.T) {
	assert.Equal(t, "recommend", rootCmd.Use)

	var found []string
	for _, c := range rootCmd.Commands() {
		found = append(found, c.Name())
	}
	assert.Subset(t, found, []string{"one", "batch", "seed"})

	f := batchCmd.Flags().Lookup("max-distance")
	require.NotNil(t, f)
	assert.Equal(t, "1000", f.DefValue)
	assert.NotNil(t, batchCmd.Flags().Lookup("users"))
	assert.NotNil(t, oneCmd.Flags().Lookup("category"))
}

func TestRunBatch_OneLinePerUserInOrder(t *testing.T) {
	svc := &fakeRecommender{}
	users := []string{"u1", "ghost-1", "u2", "u3", "ghost-2", "u4"}
	var buf bytes.Buffer

	err := runBatch(context.Background(), svc, users, domain.RecommendQuery{BaseCategory: "Coffee"}, 3, 0, &buf)
	require.NoError(t, err)

	lines := readLines(t, &buf)
	require.Len(t, lines, len(users))
	for i, l := range lines {
		assert.Equal(t, users[i], l.UserID)
		if strings.HasPrefix(users[i], "ghost") {
			assert.Equal(t, "User with userId "+users[i]+" was not found", l.Error)
			assert.Empty(t, l.Recommendations)
			continue
		}
		assert.Empty(t, l.Error)
		require.Len(t, l.Recommendations, 1)
		assert.Equal(t, "p-"+users[i], l.Recommendations[0]["placeId"])
	}
	assert.EqualValues(t, len(users), svc.calls.Load())
}

func TestRunBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := runBatch(ctx, &fakeRecommender{}, []string{"u1", "u2"}, domain.RecommendQuery{}, 1, 5, &buf)
	require.ErrorIs(t, err, context.Canceled)

	lines := readLines(t, &buf)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.NotEmpty(t, l.Error)
	}
}

func TestRunOne(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runOne(context.Background(), &fakeRecommender{}, domain.RecommendQuery{UserID: "u1", BaseCategory: "Coffee"}, &buf))

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "p-u1", docs[0]["placeId"])
	assert.Equal(t, 10.0, docs[0]["distance"])

	err := runOne(context.Background(), &fakeRecommender{}, domain.RecommendQuery{UserID: "ghost"}, &buf)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type recordingCache struct {
	dels []string
	err  error
}

func (c *recordingCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (c *recordingCache) Set(context.Context, string, any, int) error    { return nil }
func (c *recordingCache) Del(_ context.Context, key string) error {
	c.dels = append(c.dels, key)
	return c.err
}

func TestEvictSeeded(t *testing.T) {
	fx, err := memgraph.ReadFixture(strings.NewReader(`{
	  "categories": ["Coffee"],
	  "users": [{"userId": "ana"}],
	  "places": [{"placeId": "sol", "name": "Sol", "categories": ["Coffee", "Bakery"]}]
	}`))
	require.NoError(t, err)

	c := &recordingCache{}
	require.NoError(t, evictSeeded(context.Background(), c, fx))
	assert.ElementsMatch(t, []string{"user:ana", "place:sol", "category:Coffee", "category:Coffee", "category:Bakery"}, c.dels)

	c = &recordingCache{err: errors.New("redis down")}
	assert.ErrorContains(t, evictSeeded(context.Background(), c, fx), "redis down")
}
