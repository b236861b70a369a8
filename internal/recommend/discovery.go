package recommend

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"place_recommender/internal/domain"
)

// Candidate is a place that passed the radius and base category filters.
type Candidate struct {
	PlaceID    string
	Node       domain.Node
	Distance   float64
	Categories []string
}

// Discover returns the places strictly closer than radiusMeters to ref that
// belong to baseCategory, each with its full category set. Hits the store
// reports with a bad distance or without the base category are skipped.
func Discover(ctx context.Context, store domain.GraphStore, ref domain.Point, radiusMeters float64, baseCategory string) ([]Candidate, error) {
	hits, err := store.PointsWithinDistance(ctx, ref, radiusMeters, baseCategory)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Candidate, len(hits))
	for _, h := range hits {
		d := h.Distance
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || !(d < radiusMeters) {
			continue
		}
		id := h.Node.Key
		if id == "" {
			log.Debug().Msg("skipping place hit without placeId")
			continue
		}
		if prev, ok := byID[id]; ok && prev.Distance <= d {
			continue
		}
		byID[id] = Candidate{PlaceID: id, Node: h.Node, Distance: d}
	}
	if len(byID) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cats, err := store.CategoriesOf(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		c := byID[id]
		c.Categories = uniqueSorted(cats[id])
		if !contains(c.Categories, baseCategory) {
			log.Debug().Str("place", id).Str("category", baseCategory).Msg("store returned place outside base category")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}
