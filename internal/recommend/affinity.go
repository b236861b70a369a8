package recommend

import (
	"context"
	"sort"

	"place_recommender/internal/domain"
)

// Affinity maps a liked category to the user's mean rating for it. Missing
// categories weigh 0.
type Affinity map[string]float64

func (a Affinity) Weight(category string) float64 { return a[category] }

func (a Affinity) Liked(category string) bool {
	_, ok := a[category]
	return ok
}

// Categories returns the liked categories in ascending order.
func (a Affinity) Categories() []string {
	out := make([]string, 0, len(a))
	for c := range a {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RatedPlace is one RATED edge together with the categories of its place.
type RatedPlace struct {
	PlaceID    string
	Rating     float64
	Categories []string
}

// AffinityFromRatings averages ratings per category. A place in several
// categories contributes its rating to each of them independently.
func AffinityFromRatings(ratings []RatedPlace) Affinity {
	type acc struct {
		sum float64
		n   int
	}
	accs := map[string]*acc{}
	for _, r := range ratings {
		seen := make(map[string]struct{}, len(r.Categories))
		for _, c := range r.Categories {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			a, ok := accs[c]
			if !ok {
				a = &acc{}
				accs[c] = a
			}
			a.sum += r.Rating
			a.n++
		}
	}
	out := make(Affinity, len(accs))
	for c, a := range accs {
		out[c] = a.sum / float64(a.n)
	}
	return out
}

// UserAffinity loads the affinity of an existing user. The caller checks
// that the user exists; an unknown or unrated user yields an empty map.
func UserAffinity(ctx context.Context, store domain.GraphStore, userID string) (Affinity, error) {
	m, err := store.RatedCategoriesWithMeanRating(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(Affinity, len(m))
	for c, w := range m {
		out[c] = w
	}
	return out, nil
}
