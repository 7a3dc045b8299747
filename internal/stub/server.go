package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goldenbatch/internal/types"
)

// noDataMessage is returned for a missing or unreadable body.
const noDataMessage = "No data is transferred."

// maxBodySize caps simulate requests (64 KB).
const maxBodySize = 64 << 10

// simulateRequest uses pointers so that an empty object can be told apart
// from an all-zero one. Absent fields count as 0.
type simulateRequest struct {
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Speed       *float64 `json:"speed"`
}

func (r simulateRequest) empty() bool {
	return r.Temperature == nil && r.Pressure == nil && r.Speed == nil
}

func (r simulateRequest) params() types.ParameterSet {
	deref := func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	}
	return types.ParameterSet{
		Temperature: deref(r.Temperature),
		Pressure:    deref(r.Pressure),
		Speed:       deref(r.Speed),
	}
}

// Server serves the simulate endpoint.
type Server struct {
	rule   *Rule
	logger *slog.Logger
	router *chi.Mux
}

// NewServer creates a Server evaluating rule.
func NewServer(rule *Rule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{rule: rule, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Post("/simulate", s.handleSimulate)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("prediction stub listening", "addr", addr, "rule", s.rule.Expression())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("prediction stub: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"rule":   s.rule.Expression(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", r.Header.Get("X-Request-Id"))

	var req simulateRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil || req.empty() {
		logger.Warn("rejecting simulate request without data")
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": noDataMessage})
		return
	}

	p := req.params()
	pass, err := s.rule.Evaluate(p)
	if err != nil {
		logger.Error("rule evaluation failed", "error", err.Error())
		respondJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	verdict := types.VerdictFail
	if pass {
		verdict = types.VerdictPass
	}
	logger.Info("prediction served",
		"temperature", p.Temperature,
		"pressure", p.Pressure,
		"speed", p.Speed,
		"prediction", string(verdict),
	)
	respondJSON(w, http.StatusOK, map[string]string{"prediction": string(verdict)})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
