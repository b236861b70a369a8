package domain

// Label names a node type in the place graph.
type Label string

const (
	LabelUser     Label = "User"
	LabelPlace    Label = "Place"
	LabelCategory Label = "Category"
	LabelFeature  Label = "Feature"
)

// KeyProp returns the identity property of nodes carrying the label.
func (l Label) KeyProp() string {
	switch l {
	case LabelUser:
		return "userId"
	case LabelPlace:
		return "placeId"
	default:
		return "name"
	}
}

func (l Label) Valid() bool {
	switch l {
	case LabelUser, LabelPlace, LabelCategory, LabelFeature:
		return true
	}
	return false
}

// Relationship types.
const (
	RelRated        = "RATED"
	RelInCategory   = "IN_CATEGORY"
	RelHasFeature   = "HAS_FEATURE"
	RelNeedsFeature = "NEEDS_FEATURE"
)

// Node is a store-agnostic view of a graph node. Props holds every stored
// attribute, including the identity property.
type Node struct {
	Label Label
	Key   string
	Props map[string]any
}

// Point is a WGS-84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// OnEarth reports whether p is a valid WGS-84 coordinate. Stores with native
// geo types reject anything else, so they answer such a reference with no hits.
func (p Point) OnEarth() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

type User struct {
	UserID   string   `json:"userId"`
	Born     *string  `json:"born,omitempty"`   // YYYY-MM-DD
	Gender   *string  `json:"gender,omitempty"` // m|f
	Features []string `json:"features,omitempty"`
}

type Place struct {
	PlaceID     string            `json:"placeId"`
	Name        string            `json:"name"`
	FullAddress *string           `json:"fullAddress,omitempty"`
	Coordinates *Point            `json:"coordinates,omitempty"`
	ExternalIDs map[string]string `json:"externalIds,omitempty"`
	Attributes  map[string]any    `json:"attributes,omitempty"` // everything not mapped above
	Categories  []string          `json:"categories,omitempty"`
	Features    []string          `json:"features,omitempty"`
}

type Category struct {
	Name string `json:"name"`
}

type Feature struct {
	Name string `json:"name"`
}
