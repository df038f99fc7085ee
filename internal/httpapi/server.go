package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"guardian/internal/config"
	"guardian/internal/evidence"
	"guardian/internal/logging"
	"guardian/internal/pipeline"
	"guardian/internal/runstore"
	"guardian/internal/services"
)

// AuditRunner executes one synchronous audit run.
type AuditRunner interface {
	Execute(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error)
}

// HealthChecker verifies one external dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server exposes the audit pipeline over HTTP. It enforces single-instance
// execution with a file lock, matching the daemon conventions of the rest of
// the system.
type Server struct {
	bind    string
	logger  *slog.Logger
	runner  AuditRunner
	store   *runstore.Store
	checks  map[string]HealthChecker
	lock    *flock.Flock
	lockPth string

	listener net.Listener
	server   *http.Server
}

// New constructs a server from configuration and wired dependencies. checks
// maps dependency names to health probes run by GET /api/health.
func New(cfg *config.Config, runner AuditRunner, store *runstore.Store, checks map[string]HealthChecker, logger *slog.Logger) (*Server, error) {
	if cfg == nil || runner == nil || store == nil {
		return nil, errors.New("httpapi requires config, runner, and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api_bind not configured")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "guardian.lock")
	srv := &Server{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "httpapi"),
		runner:  runner,
		store:   store,
		checks:  checks,
		lock:    flock.New(lockPath),
		lockPth: lockPath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/audit", srv.handleAudit)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/runs/", srv.handleRun)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute, // audits run synchronously
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the HTTP handler (used in tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start acquires the instance lock and begins serving until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another guardian instance is already running")
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.lockPth))
	return nil
}

// Stop shuts the server down and releases the instance lock.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release instance lock", logging.Error(err))
	}
}

// Addr returns the bound listen address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type auditRequest struct {
	VideoURL   string                       `json:"video_url"`
	VideoID    string                       `json:"video_id,omitempty"`
	Transcript []evidence.TranscriptSegment `json:"transcript,omitempty"`
	OCR        []evidence.OCRDetection      `json:"ocr,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if req.VideoURL == "" && len(req.Transcript) == 0 && len(req.OCR) == 0 {
		s.writeError(w, http.StatusBadRequest, "video_url or inline evidence required", "")
		return
	}

	result, err := s.runner.Execute(r.Context(), pipeline.RunRequest{
		VideoID:    req.VideoID,
		VideoURL:   req.VideoURL,
		Transcript: req.Transcript,
		OCR:        req.OCR,
	})
	if err != nil {
		status := http.StatusInternalServerError
		reason := ""
		var runErr *pipeline.RunError
		if errors.As(err, &runErr) {
			reason = runErr.Reason
		}
		if errors.Is(err, services.ErrMalformedInput) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err.Error(), reason)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Report)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		err := check.HealthCheck(checkCtx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	s.writeJSON(w, status, resp)
}

type runListResponse struct {
	Runs []*runstore.Run `json:"runs"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var statuses []string
	for _, value := range r.URL.Query()["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, trimmed)
		}
	}
	runs, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, runListResponse{Runs: runs})
}

type runResponse struct {
	Run    *runstore.Run   `json:"run"`
	Report json.RawMessage `json:"report,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeError(w, http.StatusNotFound, "run not found", "")
		return
	}
	run, err := s.store.GetByRunID(r.Context(), runID)
	if errors.Is(err, runstore.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found", "")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	resp := runResponse{Run: run}
	if run.ReportJSON != "" {
		resp.Report = json.RawMessage(run.ReportJSON)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, reason string) {
	s.writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}
