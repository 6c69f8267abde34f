package handlers

import (
	"net/http"
	"strconv"

	"cardsheets/internal/api/middleware"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/audit"
	"cardsheets/internal/platform/docstore"

	"github.com/rs/zerolog"
)

const maxAuditEntries = 100

type AuditHandler struct {
	store docstore.Reader
	log   zerolog.Logger
}

func NewAuditHandler(store docstore.Reader) *AuditHandler {
	return &AuditHandler{store: store, log: logger.With("audit_handler")}
}

// List returns the tenant's audit trail, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	if tenant == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "No business bound to this account", nil)
		return
	}

	limit := maxAuditEntries
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		if n < limit {
			limit = n
		}
	}

	entries, err := audit.List(r.Context(), h.store, tenant.BusinessID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("business_id", tenant.BusinessID).Msg("failed to list audit logs")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list audit logs", nil)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
