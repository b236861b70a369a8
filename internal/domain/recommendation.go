package domain

// RecommendQuery is the input of a proximity recommendation.
type RecommendQuery struct {
	UserID            string
	BaseCategory      string
	Lat, Lon          float64
	MaxDistanceMeters float64
	Skip              int
	Limit             int
}

// Match explains one liked category that contributed to a score.
type Match struct {
	Name      string  `json:"name"`
	AvgRating float64 `json:"avgRating"`
}

// Recommendation is one ranked place.
type Recommendation struct {
	Place    Place
	Distance float64
	Score    float64
	Matches  []Match
}
