package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"place_recommender/internal/domain"
)

// QueryService serves catalog lookups, cached for cacheTTL.
type QueryService struct {
	repo     domain.GraphStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.GraphStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetPlace(ctx context.Context, id string) (domain.Place, error) {
	key := CatalogKey(domain.LabelPlace, id)
	var p domain.Place
	if s.cached(ctx, key, &p) {
		return p, nil
	}

	n, err := s.repo.FindNode(ctx, domain.LabelPlace, id)
	if err != nil {
		return domain.Place{}, notFoundAs(err, "place lookup", fmt.Sprintf("Place with placeId %s was not found", id))
	}
	p = PlaceFromNode(n)

	cats, err := s.repo.CategoriesOf(ctx, []string{id})
	if err != nil {
		return domain.Place{}, storeErr(err, "place categories")
	}
	p.Categories = cats[id]

	if p.Features, err = s.repo.FeaturesOf(ctx, domain.LabelPlace, id); err != nil {
		return domain.Place{}, storeErr(err, "place features")
	}

	s.store(ctx, key, p)
	return p, nil
}

func (s *QueryService) GetUser(ctx context.Context, id string) (domain.User, error) {
	key := CatalogKey(domain.LabelUser, id)
	var u domain.User
	if s.cached(ctx, key, &u) {
		return u, nil
	}

	n, err := s.repo.FindNode(ctx, domain.LabelUser, id)
	if err != nil {
		return domain.User{}, notFoundAs(err, "user lookup", fmt.Sprintf("User with userId %s was not found", id))
	}
	u = UserFromNode(n)
	if u.Features, err = s.repo.FeaturesOf(ctx, domain.LabelUser, id); err != nil {
		return domain.User{}, storeErr(err, "user features")
	}

	s.store(ctx, key, u)
	return u, nil
}

func (s *QueryService) GetCategory(ctx context.Context, name string) (domain.Category, error) {
	key := CatalogKey(domain.LabelCategory, name)
	var c domain.Category
	if s.cached(ctx, key, &c) {
		return c, nil
	}
	if _, err := s.repo.FindNode(ctx, domain.LabelCategory, name); err != nil {
		return domain.Category{}, notFoundAs(err, "category lookup", fmt.Sprintf("Category %s not found", name))
	}
	c = domain.Category{Name: name}
	s.store(ctx, key, c)
	return c, nil
}

// Ping checks that the graph store answers.
func (s *QueryService) Ping(ctx context.Context) error {
	return storeErr(s.repo.Ping(ctx), "ping")
}

// CatalogKey is the cache key of a catalog lookup, e.g. "place:p1".
func CatalogKey(label domain.Label, key string) string {
	return strings.ToLower(string(label)) + ":" + key
}

// EvictCatalog drops cached lookups for the given nodes so writes made
// outside the API show up before the TTL runs out.
func EvictCatalog(ctx context.Context, c domain.Cache, label domain.Label, keys ...string) error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, k := range keys {
		if err := c.Del(ctx, CatalogKey(label, k)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *QueryService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, _ := s.cache.Get(ctx, key, dst)
	return ok
}

func (s *QueryService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

func notFoundAs(err error, op, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Error{Kind: domain.ErrNotFound, Msg: msg}
	}
	return storeErr(err, op)
}
