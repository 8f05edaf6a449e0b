// Package transport exposes the orchestrator over HTTP: a batch endpoint,
// an SSE streaming endpoint, memory inspection routes, health, and metrics.
// Built directly on net/http + http.Flusher, matching the teacher's
// stdlib-mux gateway style; this is the one piece of the system with no
// third-party transport library behind it, since none of the example repos
// carry an SSE dependency.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/refinequery/internal/refine"
	"github.com/haasonsaas/refinequery/internal/refineerr"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// Server wires the Orchestrator into an http.Handler.
type Server struct {
	orch   *refine.Orchestrator
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer builds the route table described by the transport contract.
func NewServer(orch *refine.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{orch: orch, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/refine-requirements", s.handleRefine)
	s.mux.HandleFunc("POST /api/refine-requirements/stream", s.handleRefineStream)
	s.mux.HandleFunc("GET /memory/stats", s.handleMemoryStats)
	s.mux.HandleFunc("GET /memory/{thread_id}/search", s.handleMemorySearch)
	s.mux.HandleFunc("GET /memory/{thread_id}", s.handleMemoryList)
	s.mux.HandleFunc("DELETE /memory/{thread_id}", s.handleMemoryDelete)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type refineRequest struct {
	Query     string `json:"query"`
	ThreadID  string `json:"thread_id"`
	FocusHint string `json:"focus_hint"`
}

func decodeRefineRequest(r *http.Request) (models.Query, error) {
	var body refineRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return models.Query{}, refineerr.Wrap(refineerr.KindInvalidInput, "malformed request body", err)
	}
	return models.Query{
		Text:      body.Query,
		ThreadID:  body.ThreadID,
		FocusHint: models.FocusHint(body.FocusHint),
	}, nil
}

type refineResponse struct {
	FinalAnswer       string            `json:"final_answer"`
	ProcessingTimeMS  int64             `json:"processing_time_ms"`
	QueryKind         models.QueryKind  `json:"query_kind"`
	IsFollowup        bool              `json:"is_followup"`
	SpecialistOutputs map[string]string `json:"specialist_outputs"`
	ModeratorOutput   string            `json:"moderator_output,omitempty"`
	ThreadID          string            `json:"thread_id"`
	EntryID           string            `json:"entry_id"`
}

func toResponse(res *refine.Result) refineResponse {
	outputs := make(map[string]string, len(res.SpecialistOutputs))
	for role, text := range res.SpecialistOutputs {
		outputs[string(role)] = text
	}
	resp := refineResponse{
		FinalAnswer:       res.FinalAnswer,
		ProcessingTimeMS:  res.ProcessingTimeMS,
		QueryKind:         res.QueryKind,
		IsFollowup:        res.IsFollowup,
		SpecialistOutputs: outputs,
		ThreadID:          res.ThreadID,
		EntryID:           res.EntryID,
	}
	if res.HasModeratorOutput {
		resp.ModeratorOutput = res.ModeratorOutput
	}
	return resp
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	query, err := decodeRefineRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.orch.Run(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := refine.Collect(events)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

// handleRefineStream emits one `data: <json>\n\n` record per orchestrator
// event. A client disconnect cancels r.Context(), which propagates into
// the orchestrator run and aborts in-flight analyzer calls.
func (s *Server) handleRefineStream(w http.ResponseWriter, r *http.Request) {
	query, err := decodeRefineRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, refineerr.New(refineerr.KindInternal, "streaming unsupported by response writer"))
		return
	}

	events, err := s.orch.Run(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		writeSSE(w, ev)
		flusher.Flush()
	}
}

type ssePayload struct {
	Type           models.EventType `json:"type"`
	QueryKind      models.QueryKind `json:"query_kind,omitempty"`
	IsFollowup     bool             `json:"is_followup,omitempty"`
	ShortcutTarget string           `json:"shortcut_target,omitempty"`
	RouteDecision  string           `json:"route_decision,omitempty"`
	PlannedRoles   []models.Role    `json:"planned_roles,omitempty"`
	Role           models.Role      `json:"role,omitempty"`
	Content        string           `json:"content,omitempty"`
	Kind           string           `json:"kind,omitempty"`
	Message        string           `json:"message,omitempty"`
	Entry          *entryPayload    `json:"entry,omitempty"`
}

type entryPayload struct {
	EntryID           string            `json:"entry_id"`
	ThreadID          string            `json:"thread_id"`
	FinalAnswer       string            `json:"final_answer"`
	ProcessingTimeMS  int64             `json:"processing_time_ms"`
	QueryKind         models.QueryKind  `json:"query_kind"`
	IsFollowup        bool              `json:"is_followup"`
	SpecialistOutputs map[string]string `json:"specialist_outputs"`
	ModeratorOutput   string            `json:"moderator_output,omitempty"`
	RouteDecision     string            `json:"route_decision"`
	Duplicate         bool              `json:"duplicate"`
}

func writeSSE(w http.ResponseWriter, ev models.Event) {
	payload := ssePayload{
		Type:           ev.Type,
		QueryKind:      ev.QueryKind,
		IsFollowup:     ev.IsFollowup,
		ShortcutTarget: ev.ShortcutTarget,
		RouteDecision:  ev.RouteDecision.String(),
		PlannedRoles:   ev.PlannedRoles,
		Role:           ev.Role,
		Content:        ev.Text,
		Kind:           ev.Kind,
		Message:        ev.Message,
	}
	if ev.Err != nil {
		payload.Message = ev.Err.Error()
	}
	if ev.Entry != nil {
		e := ev.Entry
		outputs := make(map[string]string, len(e.SpecialistOutputs))
		for role, text := range e.SpecialistOutputs {
			outputs[string(role)] = text
		}
		payload.Entry = &entryPayload{
			EntryID:           e.EntryID,
			ThreadID:          e.ThreadID,
			FinalAnswer:       e.FinalAnswer,
			ProcessingTimeMS:  e.ProcessingTimeMS,
			QueryKind:         e.QueryKind,
			IsFollowup:        e.IsFollowup,
			SpecialistOutputs: outputs,
			RouteDecision:     e.RouteDecision.String(),
			Duplicate:         e.Duplicate,
		}
		if e.HasModeratorOutput {
			payload.Entry.ModeratorOutput = e.ModeratorOutput
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}

func (s *Server) handleMemoryList(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	limit := parseLimit(r)
	entries, err := s.orch.History(r.Context(), threadID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "stats": stats})
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	text := r.URL.Query().Get("q")
	limit := parseLimit(r)
	results, err := s.orch.Search(r.Context(), threadID, text, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	count, err := s.orch.ClearThread(r.Context(), threadID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true, "count": count})
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_entries": stats.TotalEntries,
		"thread_count":  stats.ThreadCount,
		"last_updated":  stats.LastUpdated,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseLimit(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a refineerr.Kind to the documented HTTP status and writes
// {"error": message}. Internal errors get a generic message; their details
// go to the log only.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := refineerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case refineerr.KindInvalidInput:
		status = http.StatusBadRequest
	case refineerr.KindUpstreamUnavailable:
		status = http.StatusBadGateway
	case refineerr.KindTimeout:
		status = http.StatusGatewayTimeout
	case refineerr.KindCancelled:
		status = 499 // client closed request, nginx convention; no stdlib constant
	case refineerr.KindStorageError, refineerr.KindInternal:
		status = http.StatusInternalServerError
	}
	s.logger.Error("request failed", "kind", kind, "err", err)
	message := err.Error()
	if kind == refineerr.KindInternal {
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
