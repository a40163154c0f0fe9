package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Queue       QueueService
	Logger      zerolog.Logger
	CORSOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables it.
	RateLimitPerMinute int
}

// NewRouter mounts the queue API:
//
//	GET  /health
//	GET  /api/queue/state
//	POST /api/queue/ticket
//	POST /api/queue/next
//	POST /api/queue/reset
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(
			cfg.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			}),
		))
	}

	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())

	r.Get("/health", HealthHandler)
	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/state", HandleQueueState(cfg.Queue))
		r.Post("/ticket", HandleCreateTicket(cfg.Queue))
		r.Post("/next", HandleCallNext(cfg.Queue))
		r.Post("/reset", HandleResetQueue(cfg.Queue))
	})

	return r
}
