package recommend

import "place_recommender/internal/domain"

// DefaultDistanceScale is the number of meters that cost one affinity point.
const DefaultDistanceScale = 200.0

// Scorer blends affinity with distance decay.
type Scorer struct {
	DistanceScale float64
}

// Scored is a candidate with its rank score and the liked categories it matched.
type Scored struct {
	Candidate
	Score   float64
	Matches []domain.Match
}

// Score computes sum(weight(c) for liked c) - distance/scale. Candidates
// matching no liked category keep a purely negative score.
func (s Scorer) Score(c Candidate, aff Affinity) Scored {
	scale := s.DistanceScale
	if scale <= 0 {
		scale = DefaultDistanceScale
	}

	var total float64
	var matches []domain.Match
	for _, cat := range c.Categories { // sorted by Discover
		if !aff.Liked(cat) {
			continue
		}
		w := aff.Weight(cat)
		total += w
		matches = append(matches, domain.Match{Name: cat, AvgRating: w})
	}
	if matches == nil {
		matches = []domain.Match{}
	}

	return Scored{
		Candidate: c,
		Score:     total - c.Distance/scale,
		Matches:   matches,
	}
}

// ScoreAll scores every candidate against the same affinity.
func (s Scorer) ScoreAll(cs []Candidate, aff Affinity) []Scored {
	out := make([]Scored, len(cs))
	for i, c := range cs {
		out[i] = s.Score(c, aff)
	}
	return out
}
