package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"place_recommender/internal/app"
	"place_recommender/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	R *app.RecommendationService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const recommendRoute = "/v1/places/recommend/{baseCategory}/for/{userId}/near/{lat}/{lon}/with-max-distance/{maxDistance}"

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)
	s.mux.Get(recommendRoute, h.recommend)
	s.mux.Get("/v1/places/{placeId}", h.getPlace)
	s.mux.Get("/v1/users/{userId}", h.getUser)
	s.mux.Get("/v1/categories/{name}", h.getCategory)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps error kinds onto HTTP statuses.
const statusClientClosedRequest = 499

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", domain.Message(err))
	case errors.Is(err, domain.ErrInvalidValue):
		writeProblem(w, http.StatusBadRequest, "Invalid Value", domain.Message(err))
	case errors.Is(err, domain.ErrUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", domain.Message(err))
	case errors.Is(err, context.Canceled):
		// nobody is reading; the status only shows up in logs and metrics
		writeProblem(w, statusClientClosedRequest, "Client Closed Request", "")
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON answers 304 when the client already holds this version.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.Q.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *Handlers) getPlace(w http.ResponseWriter, r *http.Request) {
	p, err := h.Q.GetPlace(r.Context(), chi.URLParam(r, "placeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, p)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Q.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, u)
}

func (h *Handlers) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Q.GetCategory(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, c)
}

func (h *Handlers) recommend(w http.ResponseWriter, r *http.Request) {
	q, err := parseRecommendQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := h.R.Recommend(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	docs := make([]map[string]any, len(recs))
	for i, rec := range recs {
		docs[i] = app.RecommendationDoc(rec)
	}
	writeJSON(w, r, docs)
}

func parseRecommendQuery(r *http.Request) (domain.RecommendQuery, error) {
	q := domain.RecommendQuery{
		UserID:       chi.URLParam(r, "userId"),
		BaseCategory: chi.URLParam(r, "baseCategory"),
	}
	var err error
	if q.Lat, err = finite(chi.URLParam(r, "lat"), "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = finite(chi.URLParam(r, "lon"), "lon"); err != nil {
		return q, err
	}
	if q.MaxDistanceMeters, err = finite(chi.URLParam(r, "maxDistance"), "maxDistance"); err != nil {
		return q, err
	}

	if s := r.URL.Query().Get("skip"); s != "" {
		if q.Skip, err = strconv.Atoi(s); err != nil {
			return q, domain.InvalidValuef("skip must be an integer")
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, domain.InvalidValuef("limit must be an integer")
		}
	}
	return q, nil
}

func finite(s, name string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.InvalidValuef("%s must be a number", name)
	}
	return f, nil
}
