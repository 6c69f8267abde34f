package handlers

import (
	stdErrors "errors"
	"net/http"

	"cardsheets/internal/api/middleware"
	"cardsheets/internal/engine/team"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/auth"

	"github.com/rs/zerolog"
)

type TeamHandler struct {
	team     *team.Service
	tokenSvc *auth.TokenService
	log      zerolog.Logger
}

func NewTeamHandler(teamSvc *team.Service, tokenSvc *auth.TokenService) *TeamHandler {
	return &TeamHandler{team: teamSvc, tokenSvc: tokenSvc, log: logger.With("team_handler")}
}

type InvitationResponse struct {
	InvitationCode string `json:"invitationCode"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	ExpiresAt      string `json:"expiresAt"`
}

func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req team.InvitationInput
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	invitation, err := h.team.SendInvitation(r.Context(), actorFrom(r), &req)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		h.writeTeamError(w, err, "Failed to create invitation")
		return
	}

	errors.WriteJSON(w, http.StatusCreated, InvitationResponse{
		InvitationCode: invitation.InvitationCode,
		Email:          invitation.Email,
		Status:         invitation.Status,
		ExpiresAt:      invitation.ExpiresAt,
	})
}

func (h *TeamHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req team.TeamMemberSignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	user, err := h.team.TeamMemberSignUp(r.Context(), &req)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		h.writeTeamError(w, err, "Failed to sign up team member")
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(user.UID, user.BusinessID, user.Role, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	errors.WriteJSON(w, http.StatusCreated, SignupResponse{
		BusinessID:  user.BusinessID,
		UID:         user.UID,
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: token,
	})
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	memberID := param(r, "member_id")
	if err := h.team.DeleteTeamMember(r.Context(), actorFrom(r), memberID); err != nil {
		h.writeTeamError(w, err, "Failed to delete team member")
		return
	}
	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "uid": memberID})
}

func (h *TeamHandler) writeTeamError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case stdErrors.Is(err, team.ErrInvitationNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, err.Error(), nil)
	case stdErrors.Is(err, team.ErrMemberNotFound), stdErrors.Is(err, team.ErrBusinessNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, err.Error(), nil)
	case stdErrors.Is(err, team.ErrInvitationExpired):
		errors.WriteError(w, http.StatusGone, errors.ErrCodeGone, err.Error(), nil)
	case stdErrors.Is(err, team.ErrInvitationConsumed), stdErrors.Is(err, team.ErrEmailTaken):
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, err.Error(), nil)
	case stdErrors.Is(err, team.ErrEmailMismatch), stdErrors.Is(err, team.ErrCannotDeleteOwner):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
	default:
		h.log.Error().Err(err).Msg(fallback)
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, fallback, nil)
	}
}

func actorFrom(r *http.Request) team.Actor {
	var actor team.Actor
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil {
		actor.UserID = claims.UserID
		actor.Email = claims.Email
		actor.BusinessID = claims.BusinessID
	}
	if tenant := middleware.TenantFrom(r.Context()); tenant != nil {
		actor.BusinessID = tenant.BusinessID
	}
	return actor
}
