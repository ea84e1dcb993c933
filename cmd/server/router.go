package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quotery/reminder-api/internal/api"
	apiMiddleware "github.com/quotery/reminder-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	reminderHandler := api.NewReminderHandler(
		app.scheduler,
		app.taskStore,
		app.logStore,
		app.cronCredentials(),
		app.logger,
	)
	webhookHandler := api.NewWebhookHandler(
		app.correlator,
		app.config.Webhook.Secret,
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Machine-facing endpoints; each carries its own authentication.
		r.Post("/reminders/run", reminderHandler.RunReminderJob)
		r.Post("/webhooks/provider", webhookHandler.HandleProviderEvents)

		// Interactive endpoints, guarded by bearer tokens issued by the
		// surrounding quoting app.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/tasks/{id}/reminder", reminderHandler.ForceDispatch)
			r.Get("/tasks/{id}/reminders", reminderHandler.ListReminders)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
