// Package recommend scores places near a reference point by blending a
// user's category affinity with distance decay.
//
// The pipeline is split into small pieces that only depend on
// domain.GraphStore, so the same logic runs against Neo4j, MySQL or the
// in-memory graph:
//
//   - UserAffinity: mean rating per category the user has rated.
//   - Discover: places strictly inside the radius that belong to the base
//     category, with their full category set.
//   - Scorer: finalScore = sum(weight of liked categories) - distance/scale.
//   - Rank and Page: score descending, placeId ascending on ties, then
//     offset/limit.
//
// Nothing here writes to the store or keeps state between calls.
package recommend
