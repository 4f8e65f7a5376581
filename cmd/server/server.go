package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"ringpong/internal/config"
	"ringpong/internal/handlers"
	"ringpong/internal/logging"
	localMiddleware "ringpong/internal/middleware"
	"ringpong/internal/relay"
	"ringpong/internal/store"
)

const (
	limiterPruneInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

// Server bundles the relay's long-lived parts.
type Server struct {
	cfg     *config.ServerConfig
	log     slog.Logger
	store   *store.MemoryStore
	hub     *relay.Hub
	limiter *localMiddleware.RateLimiter
	handler http.Handler
}

// SetupServer wires the room store, relay hub and router from cfg
func SetupServer(cfg *config.ServerConfig, logs *logging.LogBackend) *Server {
	rooms := store.NewMemoryStore()
	hub := relay.NewHub(rooms, logs.Logger(logging.SubsysRelay), hubOptions(cfg))
	limiter := localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)

	h := handlers.New(rooms, hub, cfg, logs.Logger(logging.SubsysHTTP))
	router := handlers.SetupRouter(h, cfg, &handlers.RouterOptions{RateLimiter: limiter})

	return &Server{
		cfg:     cfg,
		log:     logs.Logger(logging.SubsysHTTP),
		store:   rooms,
		hub:     hub,
		limiter: limiter,
		handler: router,
	}
}

func hubOptions(cfg *config.ServerConfig) relay.Options {
	return relay.Options{
		SendBuffer:     cfg.Server.SendBuffer,
		FrameRate:      cfg.Server.FrameRate,
		FrameBurst:     cfg.Server.FrameBurst,
		MaxFrameSize:   cfg.Server.MaxFrameSize,
		MaxConnections: cfg.Server.MaxConnections,
		PingInterval:   cfg.Server.PingInterval,
		PongWait:       cfg.Server.PongWait,
		WriteWait:      cfg.Server.WriteTimeout,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully: HTTP
// requests are drained and every relay connection is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infof("Starting server on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Infof("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.hub.Close()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := s.limiter.Prune(limiterMaxIdle); n > 0 {
					s.log.Debugf("Pruned %d idle rate limiters", n)
				}
			}
		}
	})
	return g.Wait()
}
