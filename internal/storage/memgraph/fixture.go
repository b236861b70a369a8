package memgraph

import (
	"io"
	"os"

	"github.com/goccy/go-json"

	"place_recommender/internal/domain"
)

// Fixture is the JSON seed format of the in-memory graph.
type Fixture struct {
	Categories []string       `json:"categories"`
	Features   []string       `json:"features"`
	Users      []domain.User  `json:"users"`
	Places     []domain.Place `json:"places"`
	Ratings    []struct {
		UserID  string  `json:"userId"`
		PlaceID string  `json:"placeId"`
		Rating  float64 `json:"rating"`
	} `json:"ratings"`
}

// ReadFixture decodes a fixture document without applying it.
func ReadFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	err := json.NewDecoder(r).Decode(&fx)
	return fx, err
}

// Load builds a graph from a fixture. Ratings are applied last, so their
// endpoints may appear anywhere in the document.
func Load(r io.Reader) (*Graph, error) {
	fx, err := ReadFixture(r)
	if err != nil {
		return nil, err
	}
	g := New()
	for _, c := range fx.Categories {
		if err := g.PutCategory(c); err != nil {
			return nil, err
		}
	}
	for _, f := range fx.Features {
		if err := g.PutFeature(f); err != nil {
			return nil, err
		}
	}
	for _, u := range fx.Users {
		if err := g.PutUser(u); err != nil {
			return nil, err
		}
	}
	for _, p := range fx.Places {
		if err := g.PutPlace(p); err != nil {
			return nil, err
		}
	}
	for _, rt := range fx.Ratings {
		if err := g.Rate(rt.UserID, rt.PlaceID, rt.Rating); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
