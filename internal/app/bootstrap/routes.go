// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/memberhub/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/memberhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/memberhub/internal/app/features/health"
	membersfeature "github.com/dalemusser/memberhub/internal/app/features/members"
	paymentsfeature "github.com/dalemusser/memberhub/internal/app/features/payments"
	registrationfeature "github.com/dalemusser/memberhub/internal/app/features/registration"
	renewalsfeature "github.com/dalemusser/memberhub/internal/app/features/renewals"
	"github.com/dalemusser/memberhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so the engine and workers built there are ready.
//
// Public endpoints: POST /register, GET /registration/status,
// POST /payments/orders, POST /payments/confirm, POST /renewals.
// Admin endpoints (X-Admin-Token): POST /payments/manual,
// POST /renewals/sweep, GET /members/{id}, POST /members/{id}/reconcile,
// GET /audit.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}
	return newRouter(svc, appCfg, deps, logger), nil
}

func newRouter(s *services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) http.Handler {
	admin := auth.RequireAdminToken(appCfg.AdminToken, s.audit)

	r := chi.NewRouter()

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Registration
	regHandler := registrationfeature.NewHandler(s.engine, s.limiter, logger)
	r.Post("/register", regHandler.Register)
	r.Mount("/registration", registrationfeature.Routes(regHandler))

	// Payments
	paymentsHandler := paymentsfeature.NewHandler(s.engine, logger)
	r.Mount("/payments", paymentsfeature.Routes(paymentsHandler, admin))

	// Renewals
	renewalsHandler := renewalsfeature.NewHandler(s.engine, logger)
	r.Mount("/renewals", renewalsfeature.Routes(renewalsHandler, admin))

	// Admin views
	membersHandler := membersfeature.NewHandler(s.engine, logger)
	r.Mount("/members", membersfeature.Routes(membersHandler, admin))

	auditHandler := auditlogfeature.NewHandler(s.auditStore, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, admin))

	return r
}
