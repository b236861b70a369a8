package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "places"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	GraphQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "graph_queries_total", Help: "Graph store queries."},
		[]string{"backend", "op", "outcome"},
	)
	GraphLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "graph_query_duration_seconds",
			Help:    "Graph store query duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
	Recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "recommendations_total", Help: "Recommendation requests by outcome."},
		[]string{"outcome"},
	)
	RecommendationCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "recommendation_candidates",
			Help:    "Candidates considered per successful recommendation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "breaker_state", Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)."},
		[]string{"name"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|error
	)
)

// Serve exposes the registry on a dedicated listener. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		GraphQueries, GraphLatency,
		Recommendations, RecommendationCandidates,
		BreakerState, CacheEvents,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveStore(backend, op, outcome string, dur time.Duration) {
	GraphQueries.WithLabelValues(backend, op, outcome).Inc()
	GraphLatency.WithLabelValues(backend, op).Observe(dur.Seconds())
}

// ObserveRecommendation counts one request; candidates are recorded only for
// successful ones.
func ObserveRecommendation(outcome string, candidates int) {
	Recommendations.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		RecommendationCandidates.Observe(float64(candidates))
	}
}

func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}
