package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/api/middleware"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/router"
	"github.com/dvloznov/finance-agent/internal/snapshot"
	"github.com/dvloznov/finance-agent/internal/state"
)

// DashboardHandler serves the summary dashboard.
type DashboardHandler struct {
	source snapshot.Source
	clock  func() time.Time
	log    zerolog.Logger
}

// NewDashboardHandler creates a dashboard handler reading from source.
func NewDashboardHandler(source snapshot.Source, clock func() time.Time, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{source: source, clock: clock, log: log}
}

// Dashboard handles GET /api/dashboard?timeframe=7d|30d|90d|1y
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if _, ok := analysis.TimeframeDays(timeframe); !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid timeframe: use 7d, 30d, 90d or 1y")
		return
	}

	snap, err := h.source.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load snapshot")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load financial data")
		return
	}

	dash, err := analysis.BuildDashboard(snap, timeframe, h.clock())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dash)
}

// WorkflowRoute is one row of the routing table.
type WorkflowRoute struct {
	Intent  domain.Intent `json:"intent"`
	Modules []string      `json:"modules"`
}

// WorkflowDescription describes how a query moves through the engine.
type WorkflowDescription struct {
	Stages         []state.Stage        `json:"stages"`
	Routes         []WorkflowRoute      `json:"routes"`
	KeywordRules   []router.KeywordRule `json:"keyword_rules"`
	FallbackIntent domain.Intent        `json:"fallback_intent"`
	Modules        []analysis.Info      `json:"modules"`
}

// WorkflowHandler describes the active workflow.
type WorkflowHandler struct {
	routes   router.Table
	registry *analysis.Registry
}

// NewWorkflowHandler creates a workflow handler. A nil table means
// router.DefaultTable.
func NewWorkflowHandler(routes router.Table, registry *analysis.Registry) *WorkflowHandler {
	if routes == nil {
		routes = router.DefaultTable()
	}
	return &WorkflowHandler{routes: routes, registry: registry}
}

// Describe builds the workflow description. Routes follow the intent
// taxonomy order.
func (h *WorkflowHandler) Describe() WorkflowDescription {
	routes := make([]WorkflowRoute, 0, len(domain.Intents))
	for _, intent := range domain.Intents {
		mods, ok := h.routes[intent]
		if !ok {
			continue
		}
		if mods == nil {
			mods = []string{}
		}
		routes = append(routes, WorkflowRoute{Intent: intent, Modules: mods})
	}

	var modules []analysis.Info
	if h.registry != nil {
		modules = h.registry.Catalogue()
	}

	return WorkflowDescription{
		Stages: []state.Stage{
			state.StageAwaitQuery,
			state.StageClassifyIntent,
			state.StageLoadContext,
			state.StageDispatch,
			state.StageSynthesize,
			state.StageDone,
		},
		Routes:         routes,
		KeywordRules:   router.KeywordRules(),
		FallbackIntent: domain.IntentGeneralInquiry,
		Modules:        modules,
	}
}

// Workflow handles GET /api/workflow
func (h *WorkflowHandler) Workflow(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.Describe())
}

// ExampleCategory groups sample queries by topic.
type ExampleCategory struct {
	Category string   `json:"category"`
	Queries  []string `json:"queries"`
}

// ExampleQueries are the sample queries offered to new users.
var ExampleQueries = []ExampleCategory{
	{"Expense Tracking", []string{
		"Show me my recent transactions",
		"Which merchants did I pay most this month?",
		"List my largest purchases",
		"What bills did I pay last month?",
	}},
	{"Budget Analysis", []string{
		"How is my budget looking this month?",
		"Where am I overspending?",
		"Compare my spending to my budget",
		"Which budget categories have room left?",
	}},
	{"Investment Analysis", []string{
		"How is my portfolio performing?",
		"Is my portfolio diversified enough?",
		"What is my asset allocation?",
		"Which stocks are my biggest holdings?",
	}},
	{"Goal Tracking", []string{
		"Am I on track for my savings goals?",
		"When will I reach my emergency fund target?",
		"How much should I save each month for my goals?",
		"Which goal is closest to its deadline?",
	}},
	{"Financial Insights", []string{
		"Give me an overview of my finances",
		"How healthy are my finances?",
		"What should I improve first?",
		"Summarise my financial situation",
	}},
	{"Risk Assessment", []string{
		"What is my financial risk?",
		"Is my emergency fund big enough?",
		"Do I need more insurance coverage?",
	}},
	{"Market Intelligence", []string{
		"What is the market outlook?",
		"What are the current economic trends?",
		"How are interest rates affecting the market?",
	}},
	{"Advanced Planning", []string{
		"How can I reduce my taxes?",
		"Am I saving enough for retirement?",
		"Should I pay off debt or invest?",
	}},
}

// Examples handles GET /api/examples
func Examples(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"examples": ExampleQueries,
		"count":    len(ExampleQueries),
	})
}
