// Package api assembles the HTTP surface: routes, handlers and middleware.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/api/handlers"
	"github.com/dvloznov/finance-agent/internal/api/middleware"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/router"
	"github.com/dvloznov/finance-agent/internal/snapshot"
)

// Deps are the collaborators the routes need. History may be nil. A nil
// Source serves an empty dashboard and nil Routes means the default table.
type Deps struct {
	Engine    handlers.Engine
	Registry  *analysis.Registry
	Source    snapshot.Source
	Routes    router.Table
	History   history.Store
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	JWTSecret string
	Log       zerolog.Logger
	Clock     func() time.Time
}

// only restricts h to the given methods.
func only(h http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				h(w, r)
				return
			}
		}
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// NewHandler returns the full HTTP handler with middleware applied.
func NewHandler(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Source == nil {
		d.Source = snapshot.StaticSource{}
	}
	log := d.Log

	chatHandler := handlers.NewChatHandler(d.Engine, d.History, log)
	modulesHandler := handlers.NewModulesHandler(d.Engine, d.Registry, log)
	queriesHandler := handlers.NewQueriesHandler(d.Publisher, log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, log)
	dashboardHandler := handlers.NewDashboardHandler(d.Source, d.Clock, log)
	workflowHandler := handlers.NewWorkflowHandler(d.Routes, d.Registry)
	socket := handlers.NewChatSocket(d.Engine, d.History, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", only(chatHandler.Chat, http.MethodPost))

	// /api/sessions/{id}/history
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
		sessionID, tail, _ := strings.Cut(rest, "/")
		if sessionID == "" || tail != "history" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			chatHandler.GetHistory(w, r, sessionID)
		case http.MethodDelete:
			chatHandler.ClearHistory(w, r, sessionID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/modules", only(modulesHandler.ListModules, http.MethodGet))
	mux.HandleFunc("/api/modules/", only(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/modules/")
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Module name is required")
			return
		}
		modulesHandler.RunModule(w, r, name)
	}, http.MethodPost))
	mux.HandleFunc("/api/market", only(modulesHandler.Market, http.MethodGet))

	mux.HandleFunc("/api/dashboard", only(dashboardHandler.Dashboard, http.MethodGet))
	mux.HandleFunc("/api/workflow", only(workflowHandler.Workflow, http.MethodGet))
	mux.HandleFunc("/api/examples", only(handlers.Examples, http.MethodGet))

	mux.HandleFunc("/api/queries", only(queriesHandler.EnqueueQuery, http.MethodPost))
	mux.HandleFunc("/api/jobs", only(jobsHandler.ListJobs, http.MethodGet))
	mux.HandleFunc("/api/jobs/", only(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}, http.MethodGet))

	mux.Handle("/ws/chat", socket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   d.Clock().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(d.JWTSecret, "/health")(mux),
				),
			),
		),
	)
}
