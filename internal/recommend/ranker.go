package recommend

import "sort"

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 10

// Rank orders items by score descending. Ties fall back to ascending
// placeId so the order does not depend on the store.
func Rank(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].PlaceID < items[j].PlaceID
	})
}

// Page applies an offset/limit window. A negative skip counts as 0, a
// non-positive limit as DefaultLimit; an offset past the end is an empty page.
func Page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if end > len(items) || end < skip {
		end = len(items)
	}
	return items[skip:end]
}
