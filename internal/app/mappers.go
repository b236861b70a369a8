package app

import (
	"strconv"
	"strings"
	"time"

	"place_recommender/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Importers (Yelp, Google Maps, Overture) store the same facts under
// different property names.
var placeAliases = map[string][]string{
	"name":        {"name", "displayName", "names.primary", "title"},
	"fullAddress": {"fullAddress", "full_address", "address", "formattedAddress", "addresses.freeform"},
	"lat":         {"latitude", "lat", "location.lat"},
	"lon":         {"longitude", "lon", "lng", "location.lon", "location.lng"},
}

var externalIDKeys = []string{"yelpId", "gmapsId", "googlePlaceId", "overtureId"}

var userAliases = map[string][]string{
	"born":   {"born", "birthDate", "birthdate"},
	"gender": {"gender", "sex"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path or "".
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.DateOnly)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// topLevelKnownFromAliases builds a set of top-level keys to exclude from extras.
func topLevelKnownFromAliases(aliases map[string][]string, keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, 16)
	for _, k := range keys {
		for _, path := range aliases[k] {
			top := path
			if i := strings.IndexByte(top, '.'); i >= 0 {
				top = top[:i]
			}
			set[top] = struct{}{}
		}
	}
	return set
}

// coordinatesOf accepts a domain.Point, a {latitude, longitude} map, or
// separate lat/lon properties.
func coordinatesOf(props map[string]any) *domain.Point {
	switch c := props["coordinates"].(type) {
	case domain.Point:
		return &c
	case *domain.Point:
		return c
	case map[string]any:
		lat := getFloatFlexible(c, "latitude", "lat", "y")
		lon := getFloatFlexible(c, "longitude", "lon", "x")
		if lat != nil && lon != nil {
			return &domain.Point{Lat: *lat, Lon: *lon}
		}
	}
	lat := getFloatFlexible(props, placeAliases["lat"]...)
	lon := getFloatFlexible(props, placeAliases["lon"]...)
	if lat != nil && lon != nil {
		return &domain.Point{Lat: *lat, Lon: *lon}
	}
	return nil
}

/********** node mappers **********/

// PlaceFromNode turns stored place properties into a Place. Properties not
// covered by the alias registry end up in Attributes.
func PlaceFromNode(n domain.Node) domain.Place {
	props := n.Props
	p := domain.Place{
		PlaceID:     n.Key,
		FullAddress: firstNonEmptyAlias(props, placeAliases, "fullAddress"),
		Coordinates: coordinatesOf(props),
	}
	if p.PlaceID == "" {
		p.PlaceID = lookupStr(props, "placeId")
	}
	if s := firstNonEmptyAlias(props, placeAliases, "name"); s != nil {
		p.Name = *s
	}

	known := topLevelKnownFromAliases(placeAliases, "name", "fullAddress", "lat", "lon")
	known["placeId"] = struct{}{}
	known["coordinates"] = struct{}{}

	for _, k := range externalIDKeys {
		if s := lookupStr(props, k); s != "" {
			if p.ExternalIDs == nil {
				p.ExternalIDs = map[string]string{}
			}
			p.ExternalIDs[k] = s
		}
		known[k] = struct{}{}
	}

	for k, v := range props {
		if _, ok := known[k]; ok {
			continue
		}
		if p.Attributes == nil {
			p.Attributes = map[string]any{}
		}
		p.Attributes[k] = v
	}
	return p
}

func UserFromNode(n domain.Node) domain.User {
	u := domain.User{
		UserID: n.Key,
		Born:   firstNonEmptyAlias(n.Props, userAliases, "born"),
		Gender: firstNonEmptyAlias(n.Props, userAliases, "gender"),
	}
	if u.Gender != nil {
		g := strings.ToLower(*u.Gender)
		if g != "m" && g != "f" {
			u.Gender = nil
		} else {
			u.Gender = &g
		}
	}
	return u
}

/********** response documents **********/

// RecommendationDoc flattens a recommendation into the public response shape:
// the place's attributes at top level plus distance, score and matches.
func RecommendationDoc(r domain.Recommendation) map[string]any {
	doc := make(map[string]any, len(r.Place.Attributes)+8)
	for k, v := range r.Place.Attributes {
		doc[k] = v
	}
	for k, v := range r.Place.ExternalIDs {
		doc[k] = v
	}
	doc["placeId"] = r.Place.PlaceID
	doc["name"] = r.Place.Name
	if r.Place.FullAddress != nil {
		doc["fullAddress"] = *r.Place.FullAddress
	}
	if r.Place.Coordinates != nil {
		doc["coordinates"] = *r.Place.Coordinates
	}
	if len(r.Place.Categories) > 0 {
		doc["categories"] = r.Place.Categories
	}
	matches := r.Matches
	if matches == nil {
		matches = []domain.Match{}
	}
	doc["distance"] = r.Distance
	doc["score"] = r.Score
	doc["matches"] = matches
	return doc
}
