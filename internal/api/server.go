package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"citypulse/internal/engine"
	"citypulse/internal/store"
)

// RunStore is the read side of the run recorder.
type RunStore interface {
	Runs(ctx context.Context) ([]store.RunSummary, error)
	History(ctx context.Context, runID string, limit int) ([]store.HourRow, error)
	Actions(ctx context.Context, runID string, fromT int) ([]store.ActionRow, error)
}

type Server struct {
	engine *engine.Engine
	runs   RunStore
	logger *slog.Logger
}

// New constructs the HTTP router wired to the simulation engine. runs may be nil when
// recording is disabled.
func New(eng *engine.Engine, runs RunStore, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: eng, runs: runs, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/state", s.handleState)
	r.Get("/forecast", s.handleForecast)
	r.Get("/history", s.handleHistory)
	r.Post("/step", s.handleStep)
	r.Post("/run", s.handleRun)
	r.Post("/jump", s.handleJump)
	r.Post("/reset", s.handleReset)
	r.Post("/sim/start", s.handleSimStart)
	r.Post("/sim/pause", s.handleSimPause)
	r.Post("/sim/speed", s.handleSimSpeed)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleRuns)
		r.Get("/{runID}/hours", s.handleRunHours)
		r.Get("/{runID}/actions", s.handleRunActions)
	})

	return r
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.State())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Forecast())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	writeJSON(w, s.engine.History(limit))
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Step(r.Context()))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Steps int `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	p, err := s.engine.Run(r.Context(), req.Steps)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSteps) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("run interrupted", "steps", req.Steps, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "run interrupted")
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hour *int `json:"hour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hour == nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	p, err := s.engine.JumpTo(r.Context(), *req.Hour)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidHour) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("jump interrupted", "hour", *req.Hour, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "jump interrupted")
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Reset())
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed int `json:"speed"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.engine.StartSim(req.Speed)
	writeJSON(w, s.engine.State())
}

func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.engine.PauseSim()
	writeJSON(w, s.engine.State())
}

func (s *Server) handleSimSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed int `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	s.engine.SetSpeed(req.Speed)
	writeJSON(w, s.engine.State())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.recording(w) {
		return
	}
	runs, err := s.runs.Runs(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunHours(w http.ResponseWriter, r *http.Request) {
	if !s.recording(w) {
		return
	}
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	rows, err := s.runs.History(r.Context(), chi.URLParam(r, "runID"), limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleRunActions(w http.ResponseWriter, r *http.Request) {
	if !s.recording(w) {
		return
	}
	from, ok := queryInt(w, r, "from", 0)
	if !ok {
		return
	}
	rows, err := s.runs.Actions(r.Context(), chi.URLParam(r, "runID"), from)
	if err != nil {
		s.storeError(w, err)
		return
	}
	type actionOut struct {
		store.ActionRow
		Actions []string `json:"actions"`
	}
	out := make([]actionOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, actionOut{ActionRow: row, Actions: row.ActionList()})
	}
	writeJSON(w, out)
}

func (s *Server) recording(w http.ResponseWriter) bool {
	if s.runs == nil {
		writeJSONError(w, http.StatusNotFound, "run recording disabled")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.logger.Error("run store query failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "store unavailable")
}

// queryInt reads a non-negative integer query parameter, writing a 400 when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
