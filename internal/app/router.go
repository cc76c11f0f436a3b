package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/constructo-erp/constructo-erp/internal/assistant"
	"github.com/constructo-erp/constructo-erp/internal/companies"
	"github.com/constructo-erp/constructo-erp/internal/employees"
	"github.com/constructo-erp/constructo-erp/internal/projects"
	"github.com/constructo-erp/constructo-erp/internal/quotes"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	QuotesHandler    *quotes.Handler
	ProjectsHandler  *projects.Handler
	CompaniesHandler *companies.Handler
	EmployeesHandler *employees.Handler
	AssistantHandler *assistant.Handler
}

// NewRouter constructs the chi.Router with Constructo defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/quotes", params.QuotesHandler.MountRoutes)
	r.Route("/projects", params.ProjectsHandler.MountRoutes)
	r.Route("/companies", params.CompaniesHandler.MountRoutes)
	r.Route("/employees", params.EmployeesHandler.MountRoutes)
	if params.AssistantHandler != nil {
		r.Route("/assistant", params.AssistantHandler.MountRoutes)
	}

	return r
}
