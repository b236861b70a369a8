package neo4jgraph

import (
	"fmt"

	"place_recommender/internal/domain"
)

// Labels and relationship types cannot be query parameters; they only ever
// come from the domain constants.

func findNodeCypher(l domain.Label) string {
	return fmt.Sprintf(`MATCH (n:%s {%s: $key}) RETURN n LIMIT 1`, l, l.KeyProp())
}

func featuresOfCypher(l domain.Label) string {
	rel := domain.RelHasFeature
	if l == domain.LabelUser {
		rel = domain.RelNeedsFeature
	}
	return fmt.Sprintf(`
MATCH (n:%s {%s: $key})-[:%s]->(f:Feature)
RETURN DISTINCT f.name AS name
ORDER BY name`, l, l.KeyProp(), rel)
}

// point.distance on WGS-84 points is the haversine distance in meters.
const pointsWithinDistanceCypher = `
MATCH (p:Place)-[:IN_CATEGORY]->(:Category {name: $baseCategory})
WHERE p.coordinates IS NOT NULL
WITH DISTINCT p
WITH p, point.distance(p.coordinates, point({latitude: $lat, longitude: $lon})) AS distance
WHERE distance < $radius
RETURN p, distance
ORDER BY p.placeId`

const categoriesOfCypher = `
UNWIND $ids AS id
MATCH (:Place {placeId: id})-[:IN_CATEGORY]->(c:Category)
WITH id, c.name AS name
ORDER BY name
RETURN id, collect(DISTINCT name) AS categories`

// Each (rating, category) pair counts once, whatever the edge multiplicity.
const ratedCategoriesCypher = `
MATCH (:User {userId: $userId})-[r:RATED]->(p:Place)-[:IN_CATEGORY]->(c:Category)
WITH DISTINCT r, c
WHERE r.rating IS NOT NULL
RETURN c.name AS category, avg(toFloat(r.rating)) AS mean`

const pingCypher = `RETURN 1 AS ok`

// ---- writes ----

const mergeCategoryCypher = `MERGE (:Category {name: $name})`

const mergeFeatureCypher = `MERGE (:Feature {name: $name})`

const mergeUserCypher = `
MERGE (u:User {userId: $userId})
SET u.gender = $gender,
    u.born = CASE WHEN $born IS NULL THEN null ELSE date($born) END
WITH u
CALL {
  WITH u
  MATCH (u)-[old:NEEDS_FEATURE]->()
  DELETE old
}
CALL {
  WITH u
  UNWIND $features AS fname
  MERGE (f:Feature {name: fname})
  MERGE (u)-[:NEEDS_FEATURE]->(f)
}
RETURN u.userId AS userId`

const mergePlaceCypher = `
MERGE (p:Place {placeId: $placeId})
SET p += $props,
    p.coordinates = CASE WHEN $lat IS NULL THEN null ELSE point({latitude: $lat, longitude: $lon}) END
WITH p
CALL {
  WITH p
  MATCH (p)-[old:IN_CATEGORY|HAS_FEATURE]->()
  DELETE old
}
CALL {
  WITH p
  UNWIND $categories AS cname
  MERGE (c:Category {name: cname})
  MERGE (p)-[:IN_CATEGORY]->(c)
}
CALL {
  WITH p
  UNWIND $features AS fname
  MERGE (f:Feature {name: fname})
  MERGE (p)-[:HAS_FEATURE]->(f)
}
RETURN p.placeId AS placeId`

const rateCypher = `
MATCH (u:User {userId: $userId}), (p:Place {placeId: $placeId})
MERGE (u)-[r:RATED]->(p)
SET r.rating = $rating
RETURN count(r) AS n`
