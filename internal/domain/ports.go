package domain

import "context"

// GraphStore is the read-only view of the place graph used by the
// recommender and the catalog.
type GraphStore interface {
	// FindNode returns ErrNotFound when no node with the label and key exists.
	FindNode(ctx context.Context, label Label, key string) (Node, error)

	// PointsWithinDistance returns places with coordinates whose distance to ref
	// is below radiusMeters and that belong to baseCategory.
	PointsWithinDistance(ctx context.Context, ref Point, radiusMeters float64, baseCategory string) ([]PlaceAtDistance, error)

	// CategoriesOf maps each place id to the names of its categories. Places
	// without categories may be absent from the result.
	CategoriesOf(ctx context.Context, placeIDs []string) (map[string][]string, error)

	// RatedCategoriesWithMeanRating maps every category the user rated a place
	// in to the mean of those ratings.
	RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error)

	// FeaturesOf lists HAS_FEATURE (places) or NEEDS_FEATURE (users) targets.
	FeaturesOf(ctx context.Context, label Label, key string) ([]string, error)

	Ping(ctx context.Context) error
}

// PlaceAtDistance is one hit of a proximity query.
type PlaceAtDistance struct {
	Node     Node
	Distance float64 // meters
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
