package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/member-locator/internal/pipeline"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readinessTimeout  = 2 * time.Second
	readHeaderTimeout = 5 * time.Second
	responseTimeout   = 10 * time.Second
	idleTimeout       = time.Minute
)

// RunMonitor is the view of a locator run the server reports on.
// *pipeline.Pipeline satisfies it.
type RunMonitor interface {
	CheckReadiness(ctx context.Context) error
	Status() pipeline.Status
}

// Run states reported by /healthz.
const (
	StateRunning = "running"
	StateIdle    = "idle"
	StateFailed  = "failed"
)

// Server reports on a locator batch while it runs.
type Server struct {
	run    RunMonitor
	logger *slog.Logger
	srv    *http.Server
}

// NewServer wires /healthz, /readyz, /status and /metrics for run.
func NewServer(addr string, run RunMonitor, logger *slog.Logger) *Server {
	s := &Server{run: run, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /readyz", s.readiness)
	mux.HandleFunc("GET /status", s.status)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      responseTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Start listens on the configured address until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.srv.Handler.ServeHTTP(w, r)
}

// healthReport answers /healthz. The process is healthy as long as it
// answers; a failed run is reported in the body, not the status code.
type healthReport struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// readinessReport answers /readyz.
type readinessReport struct {
	Ready     bool   `json:"ready"`
	Processed int    `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

// progressReport answers /status.
type progressReport struct {
	pipeline.Status
	Pending     int     `json:"pending"`
	ResolveRate float64 `json:"resolve_rate"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	st := s.run.Status()
	report := healthReport{State: StateIdle, LastError: st.LastError}
	switch {
	case st.Running:
		report.State = StateRunning
	case st.LastError != "":
		report.State = StateFailed
	}
	s.respond(w, http.StatusOK, report)
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := readinessReport{Ready: true, Processed: s.run.Status().Processed}
	code := http.StatusOK
	if err := s.run.CheckReadiness(ctx); err != nil {
		report.Ready = false
		report.Reason = err.Error()
		code = http.StatusServiceUnavailable
	}
	s.respond(w, code, report)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	st := s.run.Status()
	report := progressReport{Status: st, Pending: max(st.Total-st.Processed, 0)}
	if st.Processed > 0 {
		report.ResolveRate = float64(st.Resolved) / float64(st.Processed)
	}
	s.respond(w, http.StatusOK, report)
}

func (s *Server) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("status response not written", "error", err)
	}
}
