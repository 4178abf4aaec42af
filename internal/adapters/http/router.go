package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadlens/entitlement-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for entitlement use-cases.
type Handler struct {
	service *application.Service
	ready   func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler bound to the application service.
// readyCheck pings backing stores for /readyz; nil means always ready.
func NewHandler(service *application.Service, readyCheck func(ctx context.Context) error) *Handler {
	return &Handler{service: service, ready: readyCheck}
}

// NewRouter registers routes and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/entitlement/v1", func(r chi.Router) {
		r.Get("/status", handler.status)
		r.Get("/gate", handler.gate)
		r.Get("/device", handler.device)

		r.Post("/checkout", handler.checkout)
		r.Post("/restore", handler.restore)

		r.Post("/usage", handler.trackUsage)
		r.Get("/usage", handler.recentUsage)

		r.Get("/model-state", handler.modelState)
		r.Put("/model-state", handler.saveModelState)

		r.Post("/reset", handler.reset)
	})

	return r
}
