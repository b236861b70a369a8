package neo4jgraph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"place_recommender/internal/domain"
)

// convertProps maps driver-specific property values onto plain Go values:
// points become domain.Point, temporal values become ISO strings.
func convertProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v any) any {
	switch t := v.(type) {
	case dbtype.Point2D:
		return domain.Point{Lat: t.Y, Lon: t.X}
	case dbtype.Point3D:
		return domain.Point{Lat: t.Y, Lon: t.X}
	case dbtype.Date:
		return t.Time().Format(time.DateOnly)
	case dbtype.LocalDateTime:
		return t.Time().Format("2006-01-02T15:04:05")
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		return convertProps(t)
	}
	return v
}

// ---- record helpers ----

func nodeFromRecord(rec *neo4j.Record, key string) (neo4j.Node, bool) {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return neo4j.Node{}, false
	}
	n, ok := val.(neo4j.Node)
	return n, ok
}

func stringFromRecord(rec *neo4j.Record, key string) string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func float64FromRecord(rec *neo4j.Record, key string) (float64, bool) {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0, false
	}
	switch f := val.(type) {
	case float64:
		return f, true
	case int64:
		return float64(f), true
	}
	return 0, false
}

func stringSliceFromRecord(rec *neo4j.Record, key string) []string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return nil
	}
	slice, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
