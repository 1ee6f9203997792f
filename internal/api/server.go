package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
	"github.com/MikeSquared-Agency/timeweave/internal/store"
)

const maxBodyBytes = 64 << 20

// Merger runs a merge request.
type Merger interface {
	Process(ctx context.Context, source string, req processor.Request) (*processor.Response, error)
	Defaults() merge.Options
}

// RunReader reads persisted runs.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRows(ctx context.Context, runID uuid.UUID) ([]merge.Row, error)
}

type Server struct {
	router *chi.Mux
	port   int
	token  string
	merger Merger
	runs   RunReader
}

// NewServer wires the HTTP routes. runs and metricsHandler may be nil, in
// which case the matching routes answer 503 and 404 respectively.
func NewServer(port int, token string, merger Merger, runs RunReader, metricsHandler http.Handler) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		token:  token,
		merger: merger,
		runs:   runs,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/timeweave/status", s.status)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	router.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/api/v1/merge", s.merge)
		r.Get("/api/v1/runs", s.listRuns)
		r.Get("/api/v1/runs/{id}", s.getRun)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for graceful shutdown wrappers.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	opts := s.merger.Defaults()
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":        "timeweave",
		"status":       "ok",
		"target":       opts.Target,
		"chunk_size":   opts.ChunkSize,
		"sample_size":  opts.MaxFrequencySampleSize,
		"completeness": opts.Completeness.String(),
		"persistence":  s.runs != nil,
	})
}

func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	var req processor.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input_shape", "invalid request body: "+err.Error())
		return
	}

	resp, err := s.merger.Process(r.Context(), processor.SourceAPI, req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if merge.KindOf(err) == "internal" {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "run history is not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "input_shape", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "run history is not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "input_shape", "invalid run id")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		slog.Error("get run failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load run")
		return
	}

	rows, err := s.runs.GetRows(r.Context(), id)
	if err != nil {
		slog.Error("get rows failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load rows")
		return
	}
	if rows == nil {
		rows = []merge.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"error": processor.ErrorBody{Kind: kind, Message: message},
	})
}
