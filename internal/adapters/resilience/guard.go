// Package resilience puts a circuit breaker and query metrics in front of a
// graph store.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"place_recommender/internal/adapters/observability"
	"place_recommender/internal/domain"
)

type Options struct {
	Name         string
	Backend      string
	MaxRequests  uint32        // allowed through while half-open
	Interval     time.Duration // closed-state count reset
	Timeout      time.Duration // open -> half-open
	MinRequests  uint32
	FailureRatio float64
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = "graph"
	}
	if o.MaxRequests == 0 {
		o.MaxRequests = 3
	}
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MinRequests == 0 {
		o.MinRequests = 10
	}
	if o.FailureRatio <= 0 || o.FailureRatio > 1 {
		o.FailureRatio = 0.6
	}
}

// Guard decorates a domain.GraphStore. Not-found and invalid-value answers and
// caller cancellations do not count as store failures.
type Guard struct {
	next    domain.GraphStore
	cb      *gobreaker.CircuitBreaker[any]
	backend string
}

var _ domain.GraphStore = (*Guard)(nil)

func NewGuard(next domain.GraphStore, opts Options) *Guard {
	opts.defaults()
	observability.SetBreakerState(opts.Name, stateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < opts.MinRequests {
				return false
			}
			ratio := float64(c.TotalFailures) / float64(c.Requests)
			if ratio >= opts.FailureRatio {
				log.Warn().Uint32("failures", c.TotalFailures).Float64("failure_ratio", ratio).Msg("opening graph store circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
			observability.SetBreakerState(name, stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, domain.ErrInvalidValue) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &Guard{next: next, cb: cb, backend: opts.Backend}
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State { return g.cb.State() }

func run[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	res, err := g.cb.Execute(func() (any, error) { return fn(ctx) })
	observability.ObserveStore(g.backend, op, outcomeOf(err), time.Since(start))

	var zero T
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, domain.Unavailable(err, "graph store circuit open")
		}
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", op, res)
	}
	return v, nil
}

func (g *Guard) FindNode(ctx context.Context, label domain.Label, key string) (domain.Node, error) {
	return run(ctx, g, "find_node", func(ctx context.Context) (domain.Node, error) {
		return g.next.FindNode(ctx, label, key)
	})
}

func (g *Guard) PointsWithinDistance(ctx context.Context, ref domain.Point, radiusMeters float64, baseCategory string) ([]domain.PlaceAtDistance, error) {
	return run(ctx, g, "points_within_distance", func(ctx context.Context) ([]domain.PlaceAtDistance, error) {
		return g.next.PointsWithinDistance(ctx, ref, radiusMeters, baseCategory)
	})
}

func (g *Guard) CategoriesOf(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	return run(ctx, g, "categories_of", func(ctx context.Context) (map[string][]string, error) {
		return g.next.CategoriesOf(ctx, placeIDs)
	})
}

func (g *Guard) RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error) {
	return run(ctx, g, "rated_categories", func(ctx context.Context) (map[string]float64, error) {
		return g.next.RatedCategoriesWithMeanRating(ctx, userID)
	})
}

func (g *Guard) FeaturesOf(ctx context.Context, label domain.Label, key string) ([]string, error) {
	return run(ctx, g, "features_of", func(ctx context.Context) ([]string, error) {
		return g.next.FeaturesOf(ctx, label, key)
	})
}

func (g *Guard) Ping(ctx context.Context) error {
	_, err := run(ctx, g, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Ping(ctx)
	})
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "error"
	}
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
