package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ms-timeline/internal/events/event_api"
	"ms-timeline/internal/events/service"
	"ms-timeline/internal/logger"
	"ms-timeline/internal/metrics"
	"ms-timeline/internal/middleware"
	"ms-timeline/internal/utils"
)

const healthTimeout = 2 * time.Second

// NewRouter wires the event API, health and metrics endpoints. Event routes
// are served both under /api and at the root.
func NewRouter(svc *service.EventService, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	handler := event_api.NewHandler(svc, log)

	r.Get("/health", healthHandler(svc, log))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", handler.RegisterRoutes)
	log.Info("ROUTER", "Event routes registered under /api/events")

	handler.RegisterRoutes(r)
	log.Info("ROUTER", "Event routes registered under /events")

	return r
}

func healthHandler(svc *service.EventService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			log.Warn("HEALTH", fmt.Sprintf("Database ping failed: %v", err))
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
