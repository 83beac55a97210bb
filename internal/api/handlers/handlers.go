package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/api/middleware"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/state"
	"github.com/dvloznov/finance-agent/internal/workflow"
)

// historyWindow is how many prior messages a chat turn sees.
const historyWindow = 20

// maxQueryLength bounds the accepted query text.
const maxQueryLength = 4000

// Engine runs queries. *workflow.Engine satisfies it.
type Engine interface {
	Process(ctx context.Context, query string, hist []state.Message) state.Envelope
	RunModule(ctx context.Context, name, query string) (state.Envelope, error)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Module    string `json:"module,omitempty"`
}

// decodeQuery reads and checks a query body. The returned message is safe to
// show to the client.
func decodeQuery(r *http.Request, requireQuery bool) (queryRequest, string) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "Invalid request body"
	}
	req.Query = strings.TrimSpace(req.Query)
	if requireQuery && req.Query == "" {
		return req, "query is required"
	}
	if len(req.Query) > maxQueryLength {
		return req, "query is too long"
	}
	return req, ""
}

// converse runs one chat turn: it loads the session's recent history, runs the
// query and stores both sides of the exchange. History failures are logged and
// do not fail the turn.
func converse(ctx context.Context, engine Engine, store history.Store, log zerolog.Logger, sessionID, query string) state.Envelope {
	var hist []state.Message
	if store != nil {
		msgs, err := store.List(ctx, sessionID, historyWindow)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load history")
		}
		hist = history.ToState(msgs)
	}

	env := engine.Process(ctx, query, hist)

	if store != nil && env.Intent != domain.IntentError {
		if _, err := store.AppendExchange(ctx, sessionID, query, env.Response); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to store exchange")
		}
	}
	return env
}

// ChatResponse is the body of a chat turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	state.Envelope
}

// ChatHandler handles synchronous chat and session history.
type ChatHandler struct {
	engine  Engine
	history history.Store
	log     zerolog.Logger
}

// NewChatHandler creates a chat handler. store may be nil.
func NewChatHandler(engine Engine, store history.Store, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, history: store, log: log}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeQuery(r, true)
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	env := converse(r.Context(), h.engine, h.history, h.log, req.SessionID, req.Query)
	middleware.WriteJSON(w, http.StatusOK, ChatResponse{SessionID: req.SessionID, Envelope: env})
}

// GetHistory handles GET /api/sessions/{id}/history
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.history == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "History is disabled")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	msgs, err := h.history.List(r.Context(), sessionID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   msgs,
		"count":      len(msgs),
	})
}

// ClearHistory handles DELETE /api/sessions/{id}/history
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.history == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "History is disabled")
		return
	}

	err := h.history.Clear(r.Context(), sessionID)
	if errors.Is(err, history.ErrSessionNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to clear history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ModulesHandler exposes the module catalogue, direct module runs and the
// market snapshot.
type ModulesHandler struct {
	engine   Engine
	registry *analysis.Registry
	log      zerolog.Logger
}

// NewModulesHandler creates a modules handler.
func NewModulesHandler(engine Engine, registry *analysis.Registry, log zerolog.Logger) *ModulesHandler {
	return &ModulesHandler{engine: engine, registry: registry, log: log}
}

// ListModules handles GET /api/modules
func (h *ModulesHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules := h.registry.Catalogue()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"modules": modules,
		"count":   len(modules),
	})
}

// RunModule handles POST /api/modules/{name}. The body is optional.
func (h *ModulesHandler) RunModule(w http.ResponseWriter, r *http.Request, name string) {
	var query string
	if r.ContentLength != 0 {
		req, msg := decodeQuery(r, false)
		if msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		query = req.Query
	}

	env, err := h.engine.RunModule(r.Context(), name, query)
	if errors.Is(err, workflow.ErrUnknownModule) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown module: "+name)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("module", name).Msg("Module run failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Module run failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, env)
}

type marketReporter interface {
	Report() analysis.MarketReport
}

// Market handles GET /api/market
func (h *ModulesHandler) Market(w http.ResponseWriter, r *http.Request) {
	m, ok := h.registry.Get(analysis.MarketIntelligence)
	reporter, isReporter := m.(marketReporter)
	if !ok || !isReporter {
		middleware.WriteError(w, http.StatusNotFound, "Market intelligence is not available")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reporter.Report())
}

// QueriesHandler accepts asynchronous query jobs.
type QueriesHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewQueriesHandler creates a queries handler.
func NewQueriesHandler(publisher jobs.Publisher, log zerolog.Logger) *QueriesHandler {
	return &QueriesHandler{publisher: publisher, log: log}
}

// EnqueueQuery handles POST /api/queries
func (h *QueriesHandler) EnqueueQuery(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeQuery(r, true)
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	job := &jobs.QueryJob{
		Type:      jobs.JobTypeQuery,
		SessionID: req.SessionID,
		UserID:    middleware.SubjectFromContext(r.Context()),
		Query:     req.Query,
		Module:    req.Module,
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue query job")
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteError(w, status, "Failed to enqueue query")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("session_id", job.SessionID).Msg("Query job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: query.Get("session_id"),
		Type:      jobs.JobType(query.Get("type")),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
