package memgraph

import (
	"math"

	"place_recommender/internal/domain"
)

// earthRadiusMeters matches the radius Neo4j uses for WGS-84 point.distance.
const earthRadiusMeters = 6378140.0

// Distance is the haversine great-circle distance between a and b in meters.
func Distance(a, b domain.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
