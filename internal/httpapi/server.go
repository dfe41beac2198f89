// Package httpapi exposes the coach operations over HTTP for non-chat
// integrations. The engine's per-user serialization makes concurrent
// requests for the same user safe.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quailyquaily/wingmate/coach"
)

type Server struct {
	svc     *coach.Service
	logger  *slog.Logger
	metrics *metrics
	mux     *chi.Mux
}

func NewServer(svc *coach.Service, logger *slog.Logger, reg *prometheus.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		svc:     svc,
		logger:  logger,
		metrics: newMetrics(reg),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Post("/suggest", s.handleSuggest)
		r.Post("/tweak", s.handleTweak)
		r.Post("/commit", s.handleCommit)
		r.Post("/outcome", s.handleOutcome)
		r.Post("/weights", s.handleTuneWeight)
		r.Delete("/weights", s.handleResetWeights)
		r.Post("/settings/pacing", s.handleSetPacing)
		r.Post("/settings/autoghost", s.handleSetAutoghost)
		r.Post("/relationships/select", s.handleSelectRelationship)
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
		r.Get("/modes", s.handleModes)
		r.Get("/score", s.handleScore)
	})

	s.mux = mux
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// RecordSweep feeds the autoghost metric from the serve loop.
func (s *Server) RecordSweep(closed int) {
	s.metrics.autoghosts.Add(float64(closed))
}

func userID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "userID"))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.GenerateReplies(r.Context(), userID(r), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.suggestions.WithLabelValues(string(res.Mode)).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions":     res.Suggestions,
		"mode":            res.Mode,
		"stage":           res.Stage,
		"auto_classified": res.AutoClassified,
		"auto_outcome":    res.AutoOutcome,
	})
}

func (s *Server) handleTweak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.TweakReplies(r.Context(), userID(r), req.Kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": res.Suggestions,
		"mode":        res.Mode,
		"stage":       res.Stage,
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Which string `json:"which"`
		Text  string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.CommitReply(r.Context(), userID(r), coach.CommitRequest{Which: req.Which, Text: req.Text})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chosen":       res.Chosen,
		"mode":         res.Mode,
		"relationship": res.RelationshipName,
		"sent_count":   res.SentCount,
	})
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.RecordOutcome(r.Context(), userID(r), coach.Outcome(req.Outcome))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.outcomes.WithLabelValues(req.Outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"relationship": res.RelationshipName,
		"mode":         res.Mode,
		"stage":        res.Stage,
		"closed":       res.Closed,
	})
}

func (s *Server) handleTuneWeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dimension string  `json:"dimension"`
		Value     float64 `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := s.svc.TuneWeight(r.Context(), userID(r), req.Dimension, req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dimension": req.Dimension, "value": v})
}

func (s *Server) handleResetWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := s.svc.ResetWeights(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weights": weights})
}

func (s *Server) handleSetPacing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pacing string `json:"pacing"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.svc.SetPacing(r.Context(), userID(r), req.Pacing)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pacing": p})
}

func (s *Server) handleSetAutoghost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hours int `json:"hours"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	hours, err := s.svc.SetAutoghost(r.Context(), userID(r), req.Hours)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": hours})
}

func (s *Server) handleSelectRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	key, err := s.svc.SelectRelationship(r.Context(), userID(r), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": key})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_relationship": st.ActiveRelationship,
		"stage":               st.Stage,
		"settings":            st.Settings,
		"learning_enabled":    st.LearningEnabled,
		"debug":               st.Debug,
		"weights":             st.Weights,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.StatsReport(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": info.Stats,
		"score": info.Score,
		"hint":  map[string]string{"summary": info.HintSummary, "instruction": info.HintInstruction},
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.ModeUsageReport(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": report.Rows, "best": report.Best})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.svc.Score(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"score": score})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coach.ErrInvalidDimension), errors.Is(err, coach.ErrInvalidValue), errors.Is(err, coach.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, coach.ErrNoActiveThread):
		status = http.StatusConflict
	case errors.Is(err, coach.ErrGenerationFailure):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
