package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Timeout           time.Duration
	RateLimitRequests int // 0 disables rate limiting
	RateLimitWindow   time.Duration
	CORSOrigins       []string
}

type Server struct{ mux *chi.Mux }

func New(opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	m := chi.NewRouter()

	// All middlewares go here (before any routes are added)
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))
	if opts.RateLimitRequests > 0 {
		m.Use(httprate.Limit(
			opts.RateLimitRequests,
			opts.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
			}),
		))
	}
	m.Use(Timeout(opts.Timeout))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
