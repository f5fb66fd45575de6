// Package httpapi is the JSON adapter over the maintenance workflow.
// The tenant comes from the X-Company-ID header set by the upstream auth layer.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/app"
)

// Services are the use cases the router exposes.
type Services struct {
	Workflow      CycleWorkflow
	Parameters    ParameterCatalog
	Notifications app.NotificationService
	Reset         app.ResetService
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Options struct {
	AllowedOrigins []string
	Timeout        time.Duration
}

func NewRouter(svc Services, opts Options, logger *logrus.Entry) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CompanyHeader},
		AllowCredentials: true,
	})
	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if svc.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", svc.Metrics)
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(RequireCompany)

		r.Post("/cycles", OpenCycle(logger, svc.Workflow))
		r.Get("/cycles/{recordID}", GetCycle(logger, svc.Workflow))
		r.Post("/cycles/{recordID}/measurements", RecordMeasurement(logger, svc.Workflow))
		r.Post("/cycles/{recordID}/parameters/{name}/status", SetParameterStatus(logger, svc.Workflow))
		r.Post("/cycles/{recordID}/conclude", ConcludeRecord(logger, svc.Workflow))

		r.Get("/parameters", ListParameters(logger, svc.Parameters))
		r.Post("/parameters", CreateParameter(logger, svc.Parameters))
		r.Get("/parameters/{name}", GetParameter(logger, svc.Parameters))
		r.Put("/parameters/{name}", UpdateParameter(logger, svc.Parameters))
		r.Post("/parameters/{name}/active", SetParameterActive(logger, svc.Parameters))

		r.Get("/notifications", ListNotifications(logger, svc.Notifications))
		r.Post("/notifications/{id}/assign", AssignNotification(logger, svc.Notifications))
		r.Post("/notifications/{id}/resolve", ResolveNotification(logger, svc.Notifications))
		r.Post("/notifications/{id}/attachments", AddNotificationAttachment(logger, svc.Notifications))

		r.Route("/admin", func(admin chi.Router) {
			admin.Post("/cycles/{recordID}/parameters/{name}/assist", AssistParameter(logger, svc.Workflow))
			admin.Post("/reset", ResetCompany(logger, svc.Reset))
		})
	})

	return router
}
