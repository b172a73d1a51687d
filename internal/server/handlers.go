package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/expander"
)

// Handler builds the route tree. Exposed separately from Serve so
// tests can drive the API through httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/lineage", s.handleLineage)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Relations int    `json:"relations"`
	MaxDepth  int    `json:"max_depth"`
}

type runsResponse struct {
	Runs  []output.RunInfo `json:"runs"`
	Count int              `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	graph, depths, _ := s.snapshot()
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Relations: graph.RelationCount(),
		MaxDepth:  depths.MaxDepth(),
	})
}

func (s *Server) handleLineage(w http.ResponseWriter, _ *http.Request) {
	graph, depths, _ := s.snapshot()
	s.writeJSON(w, http.StatusOK, output.NewLineageOutput(graph, depths))
}

func (s *Server) handleAsk(w http.ResponseWriter, req *http.Request) {
	var body askRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	question := strings.TrimSpace(body.Question)
	if question == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	_, _, exp := s.snapshot()

	ctx, cancel := context.WithTimeout(req.Context(), s.cfg.AskTimeout)
	defer cancel()

	var runID string
	if s.cfg.Store != nil {
		if run, err := s.cfg.Store.CreateRun(question); err != nil {
			s.logger.Warn("failed to create run record", "error", err)
		} else {
			runID = run.ID
		}
	}

	outcome, err := exp.Run(ctx, question)
	if runID != "" {
		expander.RecordOutcome(s.cfg.Store, runID, outcome, err, s.logger)
	}
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRuns(w http.ResponseWriter, req *http.Request) {
	if s.cfg.Store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "run history unavailable"})
		return
	}

	limit := 20
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.cfg.Store.ListRuns(limit)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	infos := make([]output.RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, output.NewRunInfo(run, nil))
	}
	s.writeJSON(w, http.StatusOK, runsResponse{Runs: infos, Count: len(infos)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
