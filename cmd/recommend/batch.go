package main

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"place_recommender/internal/domain"
)

var flagUsers []string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recommend places for many users, one JSON line each",
	Long: `Runs the same query for every user in --users with bounded
concurrency (BATCH_WORKERS) and request pacing (BATCH_RPS). A failing
user is reported on its own line and never aborts the batch.

Example:
  recommend batch --users u1,u2,u3 --category Coffee --lat 40.4168 --lon -3.7038 --max-distance 2000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		base := queryFor("")
		return runBatch(cmd.Context(), svc, flagUsers, base, cfg.Batch.Workers, cfg.Batch.RPS, cmd.OutOrStdout())
	},
}

func init() {
	addQueryFlags(batchCmd)
	batchCmd.Flags().StringSliceVar(&flagUsers, "users", nil, "comma-separated user ids")
	_ = batchCmd.MarkFlagRequired("users")
	rootCmd.AddCommand(batchCmd)
}

type batchLine struct {
	UserID          string           `json:"userId"`
	Recommendations []map[string]any `json:"recommendations,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// runBatch writes one line per user, in input order.
func runBatch(ctx context.Context, svc recommender, users []string, base domain.RecommendQuery, workers int, rps float64, w io.Writer) error {
	if workers <= 0 {
		workers = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	if rps <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	sem := semaphore.NewWeighted(int64(workers))
	lines := make([]batchLine, len(users))
	started := make([]bool, len(users))
	var wg sync.WaitGroup

	start := time.Now()
	for i, id := range users {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started[i] = true
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			defer sem.Release(1)

			lines[i].UserID = userID
			if err := limiter.Wait(ctx); err != nil {
				lines[i].Error = err.Error()
				return
			}
			q := base
			q.UserID = userID
			recs, err := svc.Recommend(ctx, q)
			if err != nil {
				log.Warn().Str("user", userID).Err(err).Msg("recommendation failed")
				lines[i].Error = domain.Message(err)
				return
			}
			lines[i].Recommendations = docs(recs)
		}(i, id)
	}
	wg.Wait()

	enc := json.NewEncoder(w)
	failed := 0
	for i, l := range lines {
		if !started[i] {
			l = batchLine{UserID: users[i], Error: "not started: " + ctx.Err().Error()}
		}
		if l.Error != "" {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	log.Info().
		Int("users", len(users)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("batch completed")
	return ctx.Err()
}
