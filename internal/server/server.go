package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docuglot/docuglot/internal/export"
	"github.com/docuglot/docuglot/internal/repository"
)

// App bundles the handlers' dependencies.
type App struct {
	jobs    repository.JobRepository
	assets  repository.AssetRepository
	results repository.ResultRepository
	export  *export.Service
	logger  *slog.Logger
}

func NewApp(
	jobs repository.JobRepository,
	assets repository.AssetRepository,
	results repository.ResultRepository,
	exportSvc *export.Service,
	logger *slog.Logger,
) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		jobs:    jobs,
		assets:  assets,
		results: results,
		export:  exportSvc,
		logger:  logger,
	}
}

// NewRouter wires the CRUD surface over the job table. File uploads are
// handled by a separate service; this API only reads jobs and results and
// creates jobs for already-uploaded assets.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.CreateJob)
		r.Get("/", app.ListJobs)
		r.Get("/{id}", app.GetJob)
		r.Get("/{id}/result", app.GetJobResult)
	})
	r.Get("/v1/export", app.ExportResults)

	return r
}
