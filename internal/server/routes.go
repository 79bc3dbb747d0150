package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/agentdesk/internal/api/v1"
	"github.com/gosuda/agentdesk/internal/api/ws"
	"github.com/gosuda/agentdesk/internal/hosting"
)

func registerAPIRoutes(api huma.API, store v1.DataStore, dispatcher v1.JobDispatcher, status v1.StatusSource, monitors v1.StreamMonitors, registry *hosting.Registry) {
	v1.RegisterRepositoryRoutes(api, store)
	v1.RegisterIssueRoutes(api, store, registry)
	v1.RegisterPullRoutes(api, store, registry)
	v1.RegisterJobRoutes(api, store, dispatcher, status, monitors)
	v1.RegisterSettingsRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/jobs/{id}/stream", hub.ServeJobStream)
	r.Get("/jobs/{id}/status", hub.ServeJobStatus)
}
