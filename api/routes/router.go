package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karimndoye/sunumarket-backend/api/controllers"
	"github.com/karimndoye/sunumarket-backend/api/controllers/webhooks"
	"github.com/karimndoye/sunumarket-backend/api/middleware"
	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger   *logger.Logger
	Health   *controllers.HealthController
	GatewayA *webhooks.GatewayAController
	GatewayB *webhooks.GatewayBController
}

// New assembles the HTTP surface: probes, metrics and the webhook endpoints.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			if deps.GatewayA != nil {
				r.Post("/gateway-a", deps.GatewayA.Handle)
			}
			if deps.GatewayB != nil {
				r.Post("/gateway-b", deps.GatewayB.Handle)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		responses.NotFound(w, "route not found")
	})

	return r
}
