package main

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"place_recommender/internal/app"
	"place_recommender/internal/domain"
)

var oneCmd = &cobra.Command{
	Use:   "one <userId>",
	Short: "Recommend places for a single user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		return runOne(cmd.Context(), svc, queryFor(args[0]), cmd.OutOrStdout())
	},
}

func init() {
	addQueryFlags(oneCmd)
	rootCmd.AddCommand(oneCmd)
}

type recommender interface {
	Recommend(ctx context.Context, q domain.RecommendQuery) ([]domain.Recommendation, error)
}

func queryFor(userID string) domain.RecommendQuery {
	return domain.RecommendQuery{
		UserID:            userID,
		BaseCategory:      flagCategory,
		Lat:               flagLat,
		Lon:               flagLon,
		MaxDistanceMeters: flagMaxDistance,
		Skip:              flagSkip,
		Limit:             flagLimit,
	}
}

func docs(recs []domain.Recommendation) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = app.RecommendationDoc(r)
	}
	return out
}

func runOne(ctx context.Context, svc recommender, q domain.RecommendQuery, w io.Writer) error {
	recs, err := svc.Recommend(ctx, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs(recs))
}
