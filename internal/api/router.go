// Package api exposes the deal desk over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealdesk/internal/desk"
)

// Config tunes the HTTP surface.
type Config struct {
	CORSOrigins []string
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit float64
	RateBurst int
}

// NewRouter builds the HTTP handler for d. A nil m gets fresh metrics.
func NewRouter(d *desk.Desk, cfg Config, m *Metrics) http.Handler {
	if m == nil {
		m = NewMetrics()
	}
	h := &handlers{desk: d, metrics: m}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(m.instrument)

	r.Get("/health", h.health)
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimit, cfg.RateBurst))

		r.Post("/estimate", h.quote)
		r.Get("/notices", h.notices)

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", h.createDeal)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getDeal)
				r.Put("/", h.putDeal)
				r.Get("/estimate", h.estimate)
				r.Get("/statement.xlsx", h.statement)
				r.Get("/milestones", h.timeline)
				r.Post("/milestones/complete", h.completeAll)
				r.Put("/milestones/{type}/complete", h.setCompleted(true))
				r.Delete("/milestones/{type}/complete", h.setCompleted(false))
			})
		})
	})

	return r
}

// rateLimit applies one token bucket shared by every caller.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
