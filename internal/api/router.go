package api

import (
	"context"
	"net/http"

	apiContext "cardsheets/internal/api/context"
	"cardsheets/internal/api/handlers"
	"cardsheets/internal/api/middleware"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/platform/config"
	"cardsheets/internal/platform/models"

	"github.com/julienschmidt/httprouter"
)

type Dependencies struct {
	ReconcileHandler *handlers.ReconcileHandler
	BusinessHandler  *handlers.BusinessHandler
	TeamHandler      *handlers.TeamHandler
	CardHandler      *handlers.CardHandler
	AuditHandler     *handlers.AuditHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
	HTTPMetrics      *middleware.HTTPMetrics
	CORS             config.CORSConfig
}

// NewRouter builds the route table. The returned handler answers CORS
// preflights before routing and records request metrics when configured.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.HandleOPTIONS = false
	router.HandleMethodNotAllowed = true
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	limit := deps.RateLimiter.Limit

	// Operational
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Card template reconciliation. The business comes from the body and is
	// checked against the token in the handler.
	router.POST("/api/v1/card-templates/reconcile",
		chain(deps.ReconcileHandler.Reconcile, authMid.Handle, limit(middleware.LimitAPIWrite)))

	// Accounts
	router.POST("/api/v1/businesses/signup",
		chain(deps.BusinessHandler.SignUp, limit(middleware.LimitSignup)))
	router.POST("/api/v1/team-members/signup",
		chain(deps.TeamHandler.SignUp, limit(middleware.LimitSignup)))

	// Team management
	router.POST("/api/v1/invitations",
		chain(deps.TeamHandler.Invite, authMid.Handle, tenantMid.Handle, requireRole(models.RoleOwner, models.RoleAdmin), limit(middleware.LimitAPIWrite)))
	router.DELETE("/api/v1/team-members/:member_id",
		chain(deps.TeamHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole(models.RoleOwner), limit(middleware.LimitAPIWrite)))

	// Cards
	router.POST("/api/v1/cards",
		chain(deps.CardHandler.Create, authMid.Handle, tenantMid.Handle, limit(middleware.LimitAPIWrite)))

	// Audit
	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, requireRole(models.RoleOwner, models.RoleAdmin), limit(middleware.LimitAPIRead)))

	var handler http.Handler = router
	handler = middleware.CORS(deps.CORS)(handler)
	if deps.HTTPMetrics != nil {
		handler = deps.HTTPMetrics.Handle(handler)
	}
	return handler
}

func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap adapts an http.HandlerFunc, exposing route params through the context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.ClaimsFrom(r.Context())
			if claims == nil {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
