// Package memgraph is an in-memory property graph holding users, places,
// categories and features. Nodes live in an arena keyed by (label, key) and
// edges are indexed by source, with a reverse index for cascading deletes.
package memgraph

import (
	"context"
	"slices"
	"sort"
	"sync"

	"place_recommender/internal/domain"
	"place_recommender/internal/recommend"
)

type nodeID struct {
	label domain.Label
	key   string
}

type edge struct {
	typ   string
	to    nodeID
	props map[string]any
}

type Graph struct {
	mu    sync.RWMutex
	nodes map[nodeID]map[string]any
	out   map[nodeID][]edge
	in    map[nodeID]map[nodeID]struct{}
}

func New() *Graph {
	return &Graph{
		nodes: map[nodeID]map[string]any{},
		out:   map[nodeID][]edge{},
		in:    map[nodeID]map[nodeID]struct{}{},
	}
}

// ---- writes ----

// MergeNode creates the node or patches its properties in place.
func (g *Graph) MergeNode(label domain.Label, key string, props map[string]any) error {
	if !label.Valid() {
		return domain.InvalidValuef("unknown label %q", label)
	}
	if key == "" {
		return domain.InvalidValuef("%s requires a non-empty %s", label, label.KeyProp())
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := nodeID{label, key}
	cur, ok := g.nodes[id]
	if !ok {
		cur = map[string]any{}
		g.nodes[id] = cur
	}
	for k, v := range props {
		if v == nil {
			delete(cur, k)
			continue
		}
		cur[k] = v
	}
	cur[label.KeyProp()] = key
	return nil
}

// Relate links two existing nodes. At most one edge of a type exists per
// pair; relating again overwrites its properties.
func (g *Graph) Relate(fromLabel domain.Label, fromKey, typ string, toLabel domain.Label, toKey string, props map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, to := nodeID{fromLabel, fromKey}, nodeID{toLabel, toKey}
	if _, ok := g.nodes[from]; !ok {
		return domain.NotFoundf("%s %s was not found", fromLabel, fromKey)
	}
	if _, ok := g.nodes[to]; !ok {
		return domain.NotFoundf("%s %s was not found", toLabel, toKey)
	}

	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	edges := g.out[from]
	for i := range edges {
		if edges[i].typ == typ && edges[i].to == to {
			edges[i].props = cp
			return nil
		}
	}
	g.out[from] = append(edges, edge{typ: typ, to: to, props: cp})
	if g.in[to] == nil {
		g.in[to] = map[nodeID]struct{}{}
	}
	g.in[to][from] = struct{}{}
	return nil
}

// Unrelate removes the edge if present and reports whether it existed.
func (g *Graph) Unrelate(fromLabel domain.Label, fromKey, typ string, toLabel domain.Label, toKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, to := nodeID{fromLabel, fromKey}, nodeID{toLabel, toKey}
	edges := g.out[from]
	for i := range edges {
		if edges[i].typ == typ && edges[i].to == to {
			g.out[from] = append(edges[:i], edges[i+1:]...)
			g.dropReverse(from, to)
			return true
		}
	}
	return false
}

// DeleteNode removes a node and every relationship touching it.
func (g *Graph) DeleteNode(label domain.Label, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := nodeID{label, key}
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for _, e := range g.out[id] {
		if set := g.in[e.to]; set != nil {
			delete(set, id)
		}
	}
	for src := range g.in[id] {
		kept := g.out[src][:0]
		for _, e := range g.out[src] {
			if e.to != id {
				kept = append(kept, e)
			}
		}
		g.out[src] = kept
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.nodes, id)
	return true
}

// detach removes every outgoing edge of the given types, leaving the node
// and its other edges in place.
func (g *Graph) detach(label domain.Label, key string, types ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from := nodeID{label, key}
	var dropped []nodeID
	kept := g.out[from][:0]
	for _, e := range g.out[from] {
		if slices.Contains(types, e.typ) {
			dropped = append(dropped, e.to)
			continue
		}
		kept = append(kept, e)
	}
	g.out[from] = kept
	for _, to := range dropped {
		g.dropReverse(from, to)
	}
}

func (g *Graph) dropReverse(from, to nodeID) {
	for _, e := range g.out[from] {
		if e.to == to {
			return // another edge type still links the pair
		}
	}
	if set := g.in[to]; set != nil {
		delete(set, from)
	}
}

// ---- typed helpers ----

// PutUser merges the user and replaces its needed features.
func (g *Graph) PutUser(u domain.User) error {
	props := map[string]any{}
	if u.Born != nil {
		props["born"] = *u.Born
	}
	if u.Gender != nil {
		if *u.Gender != "m" && *u.Gender != "f" {
			return domain.InvalidValuef("gender must be m or f, got %q", *u.Gender)
		}
		props["gender"] = *u.Gender
	}
	if err := g.MergeNode(domain.LabelUser, u.UserID, props); err != nil {
		return err
	}
	g.detach(domain.LabelUser, u.UserID, domain.RelNeedsFeature)
	for _, f := range u.Features {
		if err := g.PutFeature(f); err != nil {
			return err
		}
		if err := g.Relate(domain.LabelUser, u.UserID, domain.RelNeedsFeature, domain.LabelFeature, f, nil); err != nil {
			return err
		}
	}
	return nil
}

// PutPlace merges the place and replaces its categories and features.
func (g *Graph) PutPlace(p domain.Place) error {
	props := make(map[string]any, len(p.Attributes)+4)
	for k, v := range p.Attributes {
		props[k] = v
	}
	for k, v := range p.ExternalIDs {
		props[k] = v
	}
	if p.Name != "" {
		props["name"] = p.Name
	}
	if p.FullAddress != nil {
		props["fullAddress"] = *p.FullAddress
	}
	if p.Coordinates != nil {
		props["coordinates"] = *p.Coordinates
	}
	if err := g.MergeNode(domain.LabelPlace, p.PlaceID, props); err != nil {
		return err
	}
	g.detach(domain.LabelPlace, p.PlaceID, domain.RelInCategory, domain.RelHasFeature)
	for _, c := range p.Categories {
		if err := g.Categorize(p.PlaceID, c); err != nil {
			return err
		}
	}
	for _, f := range p.Features {
		if err := g.PutFeature(f); err != nil {
			return err
		}
		if err := g.Relate(domain.LabelPlace, p.PlaceID, domain.RelHasFeature, domain.LabelFeature, f, nil); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) PutCategory(name string) error { return g.MergeNode(domain.LabelCategory, name, nil) }

func (g *Graph) PutFeature(name string) error { return g.MergeNode(domain.LabelFeature, name, nil) }

// Categorize links a place to a category, creating the category if needed.
func (g *Graph) Categorize(placeID, category string) error {
	if err := g.PutCategory(category); err != nil {
		return err
	}
	return g.Relate(domain.LabelPlace, placeID, domain.RelInCategory, domain.LabelCategory, category, nil)
}

// Rate records a user's rating of a place, replacing any earlier one.
func (g *Graph) Rate(userID, placeID string, rating float64) error {
	return g.Relate(domain.LabelUser, userID, domain.RelRated, domain.LabelPlace, placeID, map[string]any{"rating": rating})
}

// ---- domain.GraphStore ----

var _ domain.GraphStore = (*Graph)(nil)

func (g *Graph) FindNode(ctx context.Context, label domain.Label, key string) (domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return domain.Node{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	props, ok := g.nodes[nodeID{label, key}]
	if !ok {
		return domain.Node{}, domain.NotFoundf("%s %s was not found", label, key)
	}
	return domain.Node{Label: label, Key: key, Props: copyProps(props)}, nil
}

func (g *Graph) PointsWithinDistance(ctx context.Context, ref domain.Point, radiusMeters float64, baseCategory string) ([]domain.PlaceAtDistance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	base := nodeID{domain.LabelCategory, baseCategory}
	var out []domain.PlaceAtDistance
	for src := range g.in[base] {
		if src.label != domain.LabelPlace || !g.hasEdge(src, domain.RelInCategory, base) {
			continue
		}
		props := g.nodes[src]
		pt, ok := props["coordinates"].(domain.Point)
		if !ok {
			continue // no coordinates: infinitely far
		}
		d := Distance(ref, pt)
		if d < radiusMeters {
			out = append(out, domain.PlaceAtDistance{
				Node:     domain.Node{Label: domain.LabelPlace, Key: src.key, Props: copyProps(props)},
				Distance: d,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node.Key < out[j].Node.Key })
	return out, nil
}

func (g *Graph) CategoriesOf(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string][]string, len(placeIDs))
	for _, id := range placeIDs {
		if cats := g.targets(nodeID{domain.LabelPlace, id}, domain.RelInCategory); len(cats) > 0 {
			out[id] = cats
		}
	}
	return out, nil
}

func (g *Graph) RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var rated []recommend.RatedPlace
	for _, e := range g.out[nodeID{domain.LabelUser, userID}] {
		if e.typ != domain.RelRated {
			continue
		}
		r, ok := toFloat(e.props["rating"])
		if !ok {
			continue
		}
		rated = append(rated, recommend.RatedPlace{
			PlaceID:    e.to.key,
			Rating:     r,
			Categories: g.targets(e.to, domain.RelInCategory),
		})
	}
	return recommend.AffinityFromRatings(rated), nil
}

func (g *Graph) FeaturesOf(ctx context.Context, label domain.Label, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := domain.RelHasFeature
	if label == domain.LabelUser {
		rel = domain.RelNeedsFeature
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.targets(nodeID{label, key}, rel), nil
}

func (g *Graph) Ping(ctx context.Context) error { return ctx.Err() }

// ---- internals ----

func (g *Graph) hasEdge(from nodeID, typ string, to nodeID) bool {
	for _, e := range g.out[from] {
		if e.typ == typ && e.to == to {
			return true
		}
	}
	return false
}

// targets returns the sorted keys of nodes reached from id over typ.
func (g *Graph) targets(id nodeID, typ string) []string {
	var out []string
	for _, e := range g.out[id] {
		if e.typ == typ {
			out = append(out, e.to.key)
		}
	}
	sort.Strings(out)
	return out
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
