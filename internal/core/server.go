// Package core provides the HTTP chassis for the relay. It creates a chi
// router usable both by a plain HTTP server (local dev) and by a Lambda
// function URL adapter, and applies the cross-cutting concerns (recovery,
// request IDs, logging, timeouts) before requests reach the handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"hubrelay/internal/config"
)

// RouteRegistrar mounts a group of handlers on the router.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the dependencies shared by every route.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	HealthProbes []HealthProbe

	// RouteRegistrars are mounted at the root by MountRoutes. The entry point
	// fills them in, which keeps core free of handler imports.
	RouteRegistrars []RouteRegistrar

	router *chi.Mux

	mu            sync.Mutex
	shutdownHooks []func(ctx context.Context)
}

// NewServer validates its inputs and prepares an empty router. Routes are not
// mounted until MountRoutes runs, so callers can set HealthProbes and
// RouteRegistrars in between.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler. The local HTTP server and
// the Lambda function URL adapter both serve this value; call MountRoutes
// first or every path answers 404.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for tests and for registrars that
// need direct access to chi features.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// Shutdown runs the registered hooks. Detached webhook fan-outs are drained
// here so a local server does not drop notifications on SIGTERM.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	s.mu.Lock()
	hooks := append([]func(context.Context){}, s.shutdownHooks...)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, fn := range hooks {
			fn(ctx)
		}
	}()

	select {
	case <-done:
		s.Logger.Info("server shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown hooks did not finish: %w", ctx.Err())
	}
}
