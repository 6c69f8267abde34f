package middleware

import (
	"context"
	"net/http"

	apiContext "cardsheets/internal/api/context"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/platform/repositories"
)

type TenantContext struct {
	BusinessID   string
	BusinessName string
	OwnerUID     string
}

type TenantMiddleware struct {
	businesses *repositories.BusinessRepository
}

func NewTenantMiddleware(businesses *repositories.BusinessRepository) *TenantMiddleware {
	return &TenantMiddleware{businesses: businesses}
}

// Handle resolves the business the caller's token is bound to.
func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}
		if claims.BusinessID == "" {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not bound to a business", nil)
			return
		}

		business, err := m.businesses.GetByID(r.Context(), claims.BusinessID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load business", nil)
			return
		}
		if business == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Business not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			BusinessID:   business.ID,
			BusinessName: business.Name,
			OwnerUID:     business.OwnerUID,
		})

		next(w, r.WithContext(ctx))
	}
}

// TenantFrom returns the tenant stored by TenantMiddleware, or nil.
func TenantFrom(ctx context.Context) *TenantContext {
	tenant, _ := ctx.Value(apiContext.Tenant).(*TenantContext)
	return tenant
}
