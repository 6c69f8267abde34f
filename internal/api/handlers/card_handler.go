package handlers

import (
	stdErrors "errors"
	"net/http"

	"cardsheets/internal/engine/cards"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/logger"

	"github.com/rs/zerolog"
)

type CardHandler struct {
	cards *cards.Service
	log   zerolog.Logger
}

func NewCardHandler(cardSvc *cards.Service) *CardHandler {
	return &CardHandler{cards: cardSvc, log: logger.With("card_handler")}
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req cards.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	actor := actorFrom(r)
	created, err := h.cards.CreateCard(r.Context(), actor.BusinessID, actor.UserID, &req)
	if err != nil {
		switch {
		case writeValidationError(w, err):
		case stdErrors.Is(err, cards.ErrReservedField):
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		case stdErrors.Is(err, cards.ErrBusinessNotFound):
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Business not found", nil)
		default:
			h.log.Error().Err(err).Str("business_id", actor.BusinessID).Msg("card creation failed")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create card", nil)
		}
		return
	}

	errors.WriteJSON(w, http.StatusCreated, created)
}
