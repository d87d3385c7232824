// Package server exposes the emulator to the presentation layer as a small
// JSON-over-HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/objones25/pkemu/internal/artifacts"
	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/storage/monitor"
)

const (
	maxBodyBytes = 1 << 20
	defaultSteps = monitor.DefaultSteps
)

// Predictor is the emulator surface the API serves
type Predictor interface {
	Predict(ctx context.Context, params emulator.ParameterVector) (emulator.PowerSpectrum, error)
	Resolve(params emulator.ParameterVector) emulator.ParameterVector
	KGrid() []float64
	Bounds() artifacts.Bounds
	Defaults() emulator.ParameterVector
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds HTTP server settings
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server routes API requests to a Predictor
type Server struct {
	predictor Predictor
	checks    map[string]HealthChecker
	handler   http.Handler
}

// New creates a server. checks are consulted by /healthz and may be empty.
func New(predictor Predictor, checks map[string]HealthChecker) *Server {
	s := &Server{
		predictor: predictor,
		checks:    checks,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predict", s.handlePredict)
	mux.HandleFunc("GET /v1/defaults", s.handleDefaults)
	mux.HandleFunc("GET /v1/bounds", s.handleBounds)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.handler = instrument(mux)
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg Config) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type predictRequest struct {
	Params []float64 `json:"params"`
	Units  string    `json:"units,omitempty"`
}

type predictResponse struct {
	K     []float64 `json:"k"`
	PK    []float64 `json:"pk"`
	Units string    `json:"units"`
}

type parameterInfo struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

type boundsResponse struct {
	Steps      int             `json:"steps"`
	Parameters []parameterInfo `json:"parameters"`
}

type defaultsResponse struct {
	Names  []string  `json:"names"`
	Params []float64 `json:"params"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req predictRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request: %w", err))
		return
	}

	units, err := emulator.ParseUnits(req.Units)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := emulator.ParameterVector(req.Params)
	pk, err := s.predictor.Predict(r.Context(), params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		K:     s.predictor.KGrid(),
		PK:    pk.In(units, s.predictor.Resolve(params)),
		Units: string(units),
	})
}

func (s *Server) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, defaultsResponse{
		Names:  emulator.ParameterNames[:],
		Params: s.predictor.Defaults(),
	})
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	steps := defaultSteps
	if v := r.URL.Query().Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("steps must be a positive integer"))
			return
		}
		steps = n
	}

	bounds := s.predictor.Bounds()
	defaults := s.predictor.Defaults()
	resp := boundsResponse{Steps: steps, Parameters: make([]parameterInfo, len(bounds))}
	for i, iv := range bounds {
		resp.Parameters[i] = parameterInfo{
			Name:    emulator.ParameterNames[i],
			Min:     iv.Min,
			Max:     iv.Max,
			Step:    iv.Step(steps),
			Default: defaults[i],
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, c := range s.checks {
		if err := c.Health(ctx); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	status["status"] = "ok"
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	writeJSON(w, code, status)
}

func statusFor(err error) int {
	switch {
	case emulator.IsInvalidInput(err):
		return http.StatusBadRequest
	case emulator.IsPrediction(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
