package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"spamcheck-backend/internal/handlers"
	"spamcheck-backend/internal/middleware"
	"spamcheck-backend/internal/websocket"
)

type Handlers struct {
	Page     *handlers.PageHandler
	Checks   *handlers.CheckHandler
	Upstream *handlers.UpstreamHandler
	Session  *handlers.SessionHandler
}

func New(
	sessionAuth *middleware.SessionAuth,
	h Handlers,
	wsHub *websocket.Hub,
	limiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/upstream", h.Upstream.Health)

	// ──── Form page (cookie session) ────
	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.CookieMiddleware)
		r.Get("/", h.Page.Show)
		r.With(limiter.Middleware).Post("/", h.Page.Submit)
	})

	// Same-origin relay for pages that post to the relative path
	r.With(limiter.Middleware).Post("/predict", h.Upstream.Predict)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", h.Session.Create)
		r.Post("/counter", h.Checks.Counter)
		r.Get("/model/metrics", h.Upstream.Metrics)
		r.Get("/stats", h.Upstream.Stats)

		// ──── Check Routes ────
		r.Route("/checks", func(r chi.Router) {
			r.Use(sessionAuth.Middleware)
			r.Get("/view", h.Checks.View)

			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware)
				r.Post("/", h.Checks.Submit)
				r.Post("/async", h.Checks.SubmitAsync)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
