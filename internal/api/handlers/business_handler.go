package handlers

import (
	stdErrors "errors"
	"net/http"

	"cardsheets/internal/engine/team"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/auth"

	"github.com/rs/zerolog"
)

type BusinessHandler struct {
	team     *team.Service
	tokenSvc *auth.TokenService
	log      zerolog.Logger
}

func NewBusinessHandler(teamSvc *team.Service, tokenSvc *auth.TokenService) *BusinessHandler {
	return &BusinessHandler{team: teamSvc, tokenSvc: tokenSvc, log: logger.With("business_handler")}
}

// SignupResponse carries a convenience access token for the new account.
type SignupResponse struct {
	BusinessID  string `json:"businessId"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
}

func (h *BusinessHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req team.BusinessSignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	business, user, err := h.team.BusinessSignUp(r.Context(), &req)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		if stdErrors.Is(err, team.ErrEmailTaken) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Email already registered", nil)
			return
		}
		h.log.Error().Err(err).Msg("business signup failed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create business", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(user.UID, business.ID, user.Role, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	errors.WriteJSON(w, http.StatusCreated, SignupResponse{
		BusinessID:  business.ID,
		UID:         user.UID,
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: token,
	})
}
