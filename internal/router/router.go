package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/baz1ga/scenarwall/internal/gateway"
	"github.com/baz1ga/scenarwall/internal/handlers"
	"github.com/baz1ga/scenarwall/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	runHandler *handlers.RunHandler,
	presenceHandler *handlers.PresenceHandler,
	gw *gateway.Gateway,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// API rate limiter (120 req/min per IP)
	apiLimiter := middleware.NewRateLimiter(120, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Collaborator API (CRUD layer, dashboards) ────
		r.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware)
			r.Use(jwtAuth.Middleware)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/{id}/present", runHandler.StartPresenting)
				r.Post("/{id}/heartbeat", runHandler.Heartbeat)
				r.Get("/{id}/runs", runHandler.SessionRuns)
			})

			r.Get("/runs", runHandler.List)
			r.Get("/presence", presenceHandler.Current)
		})

		// ──── WebSocket (authenticates via query token) ────
		r.Get("/ws", gw.HandleWebSocket)
	})

	return r
}
