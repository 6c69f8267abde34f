package handlers

import (
	stdErrors "errors"
	"net/http"

	"cardsheets/internal/api/middleware"
	"cardsheets/internal/engine/reconcile"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/audit"

	"github.com/rs/zerolog"
)

type ReconcileHandler struct {
	svc   *reconcile.Service
	audit *audit.Logger
	log   zerolog.Logger
}

func NewReconcileHandler(svc *reconcile.Service, auditLog *audit.Logger) *ReconcileHandler {
	return &ReconcileHandler{svc: svc, audit: auditLog, log: logger.With("reconcile_handler")}
}

// Reconcile serves POST /api/v1/card-templates/reconcile.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcile.Request
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	// A token acts for its own business only; an unbound token acts for none.
	claims := middleware.ClaimsFrom(r.Context())
	if req.BusinessID != "" && (claims == nil || claims.BusinessID != req.BusinessID) {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not valid for this business", nil)
		return
	}

	res, err := h.svc.Reconcile(r.Context(), &req)
	switch {
	case err == nil:
	case stdErrors.Is(err, reconcile.ErrMissingField):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeMissingField, err.Error(), nil)
		return
	case stdErrors.Is(err, reconcile.ErrBusinessNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Business not found", nil)
		return
	default:
		h.log.Error().Err(err).Str("business_id", req.BusinessID).Msg("reconciliation failed")
		errors.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if res.Committed {
		var userID string
		if claims != nil {
			userID = claims.UserID
		}
		h.audit.Log(r.Context(), req.BusinessID, userID, audit.ActionReconcile, "business", req.BusinessID, map[string]interface{}{
			"updatedCardsCount":     res.UpdatedCardsCount,
			"updatedTemplatesCount": res.UpdatedTemplatesCount,
			"updatedProfilesCount":  res.UpdatedProfilesCount,
		})
	}

	errors.WriteJSON(w, http.StatusOK, res)
}
