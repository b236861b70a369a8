package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"place_recommender/internal/adapters/observability"
	"place_recommender/internal/domain"
	"place_recommender/internal/recommend"
)

// DefaultMaxDistanceMeters is the radius ceiling when none is configured.
const DefaultMaxDistanceMeters = 100000

type RecommendOptions struct {
	MaxDistanceMeters float64
	DistanceScale     float64
	DefaultLimit      int
}

// RecommendationService answers proximity recommendations. It holds no
// mutable state and is safe for concurrent use.
type RecommendationService struct {
	store        domain.GraphStore
	scorer       recommend.Scorer
	maxDistance  float64
	defaultLimit int
}

func NewRecommendationService(store domain.GraphStore, opts RecommendOptions) *RecommendationService {
	if opts.MaxDistanceMeters <= 0 {
		opts.MaxDistanceMeters = DefaultMaxDistanceMeters
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = recommend.DefaultLimit
	}
	return &RecommendationService{
		store:        store,
		scorer:       recommend.Scorer{DistanceScale: opts.DistanceScale},
		maxDistance:  opts.MaxDistanceMeters,
		defaultLimit: opts.DefaultLimit,
	}
}

// Recommend ranks places of q.BaseCategory around (q.Lat, q.Lon) for q.UserID.
// The user, the category and the radius ceiling are checked before any
// candidate is looked up.
func (s *RecommendationService) Recommend(ctx context.Context, q domain.RecommendQuery) ([]domain.Recommendation, error) {
	out, n, err := s.recommend(ctx, q)
	observability.ObserveRecommendation(outcome(err), n)
	return out, err
}

func (s *RecommendationService) recommend(ctx context.Context, q domain.RecommendQuery) ([]domain.Recommendation, int, error) {
	if err := s.validate(ctx, q); err != nil {
		return nil, 0, err
	}

	var (
		aff   recommend.Affinity
		cands []recommend.Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := recommend.UserAffinity(gctx, s.store, q.UserID)
		aff = a
		return storeErr(err, "user affinity")
	})
	g.Go(func() error {
		c, err := recommend.Discover(gctx, s.store, domain.Point{Lat: q.Lat, Lon: q.Lon}, q.MaxDistanceMeters, q.BaseCategory)
		cands = c
		return storeErr(err, "candidate discovery")
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	scored := s.scorer.ScoreAll(cands, aff)
	recommend.Rank(scored)

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	page := recommend.Page(scored, q.Skip, limit)

	out := make([]domain.Recommendation, len(page))
	for i, c := range page {
		p := PlaceFromNode(c.Node)
		p.Categories = c.Categories
		out[i] = domain.Recommendation{
			Place:    p,
			Distance: c.Distance,
			Score:    c.Score,
			Matches:  c.Matches,
		}
	}

	log.Debug().
		Str("user", q.UserID).
		Str("category", q.BaseCategory).
		Float64("radius", q.MaxDistanceMeters).
		Strs("liked", aff.Categories()).
		Int("candidates", len(cands)).
		Int("returned", len(out)).
		Msg("recommendation computed")
	return out, len(cands), nil
}

func (s *RecommendationService) validate(ctx context.Context, q domain.RecommendQuery) error {
	if _, err := s.store.FindNode(ctx, domain.LabelUser, q.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundf("User with userId %s was not found", q.UserID)
		}
		return storeErr(err, "user lookup")
	}
	if _, err := s.store.FindNode(ctx, domain.LabelCategory, q.BaseCategory); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundf("Category %s not found", q.BaseCategory)
		}
		return storeErr(err, "category lookup")
	}
	if q.MaxDistanceMeters > s.maxDistance {
		return domain.InvalidValuef("Max distance parameter must be less or equal than %g", s.maxDistance)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidValue):
		return "invalid"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
