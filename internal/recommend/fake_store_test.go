package recommend_test

import (
	"context"

	"place_recommender/internal/domain"
)

// fakeStore returns canned answers and counts calls.
type fakeStore struct {
	hits      []domain.PlaceAtDistance
	cats      map[string][]string
	affinity  map[string]float64
	err       error
	pointsN   int
	catsN     int
	affinityN int
	lastIDs   []string
}

func (f *fakeStore) FindNode(ctx context.Context, label domain.Label, key string) (domain.Node, error) {
	return domain.Node{Label: label, Key: key}, nil
}

func (f *fakeStore) PointsWithinDistance(ctx context.Context, ref domain.Point, radius float64, base string) ([]domain.PlaceAtDistance, error) {
	f.pointsN++
	return f.hits, f.err
}

func (f *fakeStore) CategoriesOf(ctx context.Context, ids []string) (map[string][]string, error) {
	f.catsN++
	f.lastIDs = ids
	return f.cats, f.err
}

func (f *fakeStore) RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error) {
	f.affinityN++
	return f.affinity, f.err
}

func (f *fakeStore) FeaturesOf(ctx context.Context, label domain.Label, key string) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

func hit(id string, d float64) domain.PlaceAtDistance {
	return domain.PlaceAtDistance{Node: domain.Node{Label: domain.LabelPlace, Key: id, Props: map[string]any{"placeId": id}}, Distance: d}
}
