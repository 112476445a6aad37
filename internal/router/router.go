package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/cinema-recommendation/internal/handler"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
	"github.com/actuallystonmai/cinema-recommendation/internal/metrics"
)

type Options struct {
	RateLimitRequests int // 0 disables rate limiting
	RateLimitWindow   time.Duration
	CORSOrigins       []string
	RequestTimeout    time.Duration
}

//nolint:gocritic // zerolog.Logger is passed by value
func Setup(h *handler.Handler, opts Options, logger zerolog.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logging.Component(logger, "http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Operational endpoints stay outside the rate limit and timeout.
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimitRequests > 0 {
			r.Use(httprate.Limit(opts.RateLimitRequests, opts.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/viewers/{viewerID}/recommendations", h.GetRecommendations)
		r.Get("/viewers/{viewerID}/recommendations/titles", h.GetRecommendationTitles)
		r.Put("/viewers/{viewerID}/ratings/{movieID}", h.RateMovie)
		r.Post("/viewers/{viewerID}/activity/{movieID}", h.TrackActivity)
		r.Get("/recommendations/batch", h.GetBatchRecommendations)
		r.Post("/catalog/changed", h.CatalogChanged)
	})

	return r
}

// accessLog writes one structured line per request and records its latency.
//
//nolint:gocritic // zerolog.Logger is passed by value
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("request")
		})
	}
}
