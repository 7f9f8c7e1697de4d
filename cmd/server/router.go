package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/taskvault/taskvault-api/internal/api"
	apiMiddleware "github.com/taskvault/taskvault-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.ActorMiddleware)

	if len(app.config.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: app.config.Server.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", apiMiddleware.ActorHeader},
		}).Handler)
	}

	// Create API handlers using the application's services
	taskHandler := api.NewTaskHandler(app.taskService, app.auditRecorder, app.logger)
	suggestHandler := api.NewSuggestHandler(app.suggestIndex, app.logger)
	analyticsHandler := api.NewAnalyticsHandler(app.analyticsService, app.logger)
	exportHandler := api.NewExportHandler(app.taskStore, app.logger)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)
			r.Get("/search", taskHandler.Search)
			r.Get("/overdue", taskHandler.Overdue)
			r.Get("/export", exportHandler.Export)

			r.Post("/bulk", taskHandler.BulkCreate)
			r.Post("/bulk/status", taskHandler.BulkUpdateStatus)
			r.Post("/bulk/complete", taskHandler.BulkComplete)
			r.Post("/bulk/delete", taskHandler.BulkDelete)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
				r.Post("/complete", taskHandler.Complete)
				r.Post("/duplicate", taskHandler.Duplicate)
				r.Get("/history", taskHandler.History)
			})
		})

		r.Get("/suggestions", suggestHandler.Suggest)
		r.Get("/analytics/summary", analyticsHandler.Summary)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
