// Package server is the thin HTTP boundary around the plan runner: one
// liveness route and one execution route. The caller always receives the
// accumulated log trail, whatever the outcome.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/webrunner/webrunner/config"
	"github.com/webrunner/webrunner/rules"
	"github.com/webrunner/webrunner/runner"
)

const maxBodyBytes = 2 << 20 // 2mb, matching the reference runner's body limit

// Executor runs one plan to completion. *runner.Runner satisfies it.
type Executor interface {
	Execute(ctx context.Context, plan runner.Plan) *runner.RunResult
}

type Server struct {
	cfg  *config.Config
	exec Executor
}

func New(cfg *config.Config, exec Executor) *Server {
	return &Server{cfg: cfg, exec: exec}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/run", s.handleRun)
	return mux
}

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	slog.Info(fmt.Sprintf("runner backend listening on port %d", s.cfg.Port))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "runner-online"})
}

type runRequest struct {
	Plan     json.RawMessage `json:"plan"`
	Commands json.RawMessage `json:"commands"`
}

type runResponse struct {
	Logs   []string     `json:"logs"`
	Result []rules.Item `json:"result"`
}

type errorResponse struct {
	Error string   `json:"error"`
	Logs  []string `json:"logs"`
}

// handleRun accepts {"plan": [...]} (or the "commands" alias), executes the
// plan once and serializes the outcome. Structural input errors are
// rejected before any browser resource is acquired.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err), Logs: []string{}})
		return
	}
	raw := req.Plan
	if len(raw) == 0 || string(raw) == "null" {
		raw = req.Commands
	}
	var plan runner.Plan
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &plan) != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "plan must be an array", Logs: []string{}})
		return
	}

	res := s.exec.Execute(r.Context(), plan)
	logs := res.Logs
	if logs == nil {
		logs = []string{}
	}
	if res.Err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: res.Err.Error(), Logs: logs})
		return
	}
	result := res.Result
	if result == nil {
		result = []rules.Item{}
	}
	writeJSON(w, http.StatusOK, runResponse{Logs: logs, Result: result})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error(fmt.Sprintf("failed to write response: %v", err))
	}
}
