// Package panel provides the HTTP control-panel API. It exposes the parameter
// store and the simulation orchestrator over a chi router and streams outcome
// changes to browsers as server-sent events.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"goldenbatch/internal/types"
)

// ParameterService is the parameter store as seen by the API.
type ParameterService interface {
	Snapshot() types.ParameterSet
	Bounds() []types.ParameterBounds
	Set(name types.ParameterName, raw any) (types.ParameterSet, error)
	Reset() types.ParameterSet
}

// SimulationService is the orchestrator as seen by the API.
type SimulationService interface {
	Start(ctx context.Context) (types.Outcome, error)
	Cancel() bool
	Outcome() types.Outcome
	Watch(fn func(types.Outcome)) (unsubscribe func())
}

// Server encapsulates the dependencies of the panel API.
type Server struct {
	Params      ParameterService
	Simulations SimulationService
	Logger      *slog.Logger
	Validator   *Validator

	// HealthProbes are checked by /readyz.
	HealthProbes []HealthProbe

	// RequestTimeout bounds non-streaming requests.
	RequestTimeout time.Duration
	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration

	router *chi.Mux
}

const (
	defaultRequestTimeout = 30 * time.Second
	defaultHeartbeat      = 15 * time.Second
)

// NewServer wires the router. It fails fast on missing dependencies.
func NewServer(params ParameterService, sims SimulationService, logger *slog.Logger) (*Server, error) {
	if params == nil {
		return nil, errors.New("parameter service must not be nil")
	}
	if sims == nil {
		return nil, errors.New("simulation service must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Params:         params,
		Simulations:    sims,
		Logger:         logger,
		Validator:      NewValidator(logger),
		RequestTimeout: defaultRequestTimeout,
		Heartbeat:      defaultHeartbeat,
		router:         chi.NewRouter(),
	}
	s.MountRoutes()
	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MountRoutes registers middleware and routes.
//
// Middleware order:
//  1. Recoverer - outermost so every panic becomes a 500 envelope.
//  2. RequestID - correlation ID for logs and error bodies.
//  3. RequestLogger
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Get("/healthz", s.HandleHealth)
	s.router.Get("/readyz", s.HandleReady)

	s.router.Route("/v1", func(r chi.Router) {
		// The event stream is long-lived and must not inherit the request timeout.
		r.Get("/simulations/events", s.HandleEvents)

		r.Group(func(r chi.Router) {
			r.Use(ContextTimeoutMiddleware(s.RequestTimeout))

			r.Get("/parameters", s.HandleGetParameters)
			r.Put("/parameters/{name}", s.HandleSetParameter)
			r.Post("/parameters/reset", s.HandleResetParameters)

			r.Post("/simulations", s.HandleStartSimulation)
			r.Get("/simulations/current", s.HandleCurrentSimulation)
			r.Delete("/simulations/current", s.HandleCancelSimulation)
		})
	})
}

// Serve runs an http.Server on addr until ctx is done, then shuts it down
// within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("panel API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("panel server: %w", err)
	case <-ctx.Done():
	}

	s.Logger.Info("panel API shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down panel server: %w", err)
	}
	return nil
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
