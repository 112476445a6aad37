package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
)

const maxBodyBytes = 1 << 16

// RecommendationService is what the HTTP layer needs from the service.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, viewerID int64, limit int) (*domain.RecommendationResult, error)
	RecommendTitles(ctx context.Context, viewerID int64, limit int) ([]string, error)
	GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error)
	RateMovie(ctx context.Context, viewerID, movieID int64, score int) (float64, error)
	TrackActivity(ctx context.Context, ev domain.ActivityEvent) (*domain.MovieActivity, error)
	NotifyCatalogChanged(ctx context.Context, reason string) domain.CatalogEvent
}

// Pinger is a dependency reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service  RecommendationService
	checks   map[string]Pinger
	validate *validator.Validate
	logger   zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is passed by value
func NewHandler(svc RecommendationService, checks map[string]Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  svc,
		checks:   checks,
		validate: validator.New(),
		logger:   logging.Component(logger, "handler"),
	}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeServiceError maps service errors onto status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrViewerNotFound):
		writeError(w, http.StatusNotFound, "viewer_not_found", "Viewer does not exist")
	case errors.Is(err, domain.ErrMovieNotFound):
		writeError(w, http.StatusNotFound, "movie_not_found", "Movie does not exist")
	case errors.Is(err, domain.ErrInvalidScore), errors.Is(err, domain.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "Request timed out, please try again")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// pathID parses a positive id URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// queryInt reads an optional integer in [lo, hi].
func queryInt(r *http.Request, name string, fallback, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

// decodeBody reads a JSON body into dst and validates it. An empty body
// leaves dst untouched before validation.
func (h *Handler) decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	return h.validate.Struct(dst)
}
