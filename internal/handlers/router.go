package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ringpong/internal/config"
	localMiddleware "ringpong/internal/middleware"
)

// RouterOptions allows customization of router setup for tests
type RouterOptions struct {
	DisableRateLimiting  bool
	DisableRequestLogger bool
	CustomMiddleware     []func(http.Handler) http.Handler
	RateLimiter          *localMiddleware.RateLimiter // shared limiter, created from cfg when nil
}

// SetupRouter creates the relay router with all routes and middleware
func SetupRouter(h *Handler, cfg *config.ServerConfig, opts *RouterOptions) *chi.Mux {
	if opts == nil {
		opts = &RouterOptions{}
	}

	r := chi.NewRouter()

	// Chi's built-in middleware (conditionally applied)
	if !opts.DisableRequestLogger {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Our custom middleware
	r.Use(localMiddleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))
	r.Use(localMiddleware.SecurityHeaders())

	// Rate limiting (conditionally applied)
	if !opts.DisableRateLimiting {
		rateLimiter := opts.RateLimiter
		if rateLimiter == nil {
			rateLimiter = localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		}
		r.Use(rateLimiter.Middleware())
	}

	for _, mw := range opts.CustomMiddleware {
		r.Use(mw)
	}

	// Relay connections live as long as the peer does, so no request timeout
	r.Get("/ws", h.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/api/rooms/{code}", ValidateRoomCode(h.ResolveRoom))
		r.Get("/api/rooms/{code}/qr", ValidateRoomCode(h.RoomQRCode))
		r.Get("/join/{code}", ValidateRoomCode(h.JoinRoom))

		// Health check endpoints (no auth required)
		r.Get("/health/live", h.Live)
		r.Get("/health/ready", h.Ready)
	})

	return r
}
