package cards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/pkg/validator"
	"cardsheets/internal/platform/audit"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/email"
	"cardsheets/internal/platform/models"
	"cardsheets/internal/platform/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrReservedField    = errors.New("reserved card field")
)

var reservedFields = []string{models.FieldTypeOfCards, models.FieldTypeOfProfile, models.FieldHistory}

type CreateInput struct {
	TypeOfCards string        `json:"typeOfCards" validate:"required,max=120"`
	Fields      models.Fields `json:"fields" validate:"required"`
}

// Created is the stored card as returned to the caller.
type Created struct {
	ID            string            `json:"id"`
	TypeOfCards   string            `json:"typeOfCards"`
	TypeOfProfile string            `json:"typeOfProfile,omitempty"`
	Data          docstore.Document `json:"data"`
}

type Service struct {
	store      docstore.Store
	businesses *repositories.BusinessRepository
	profiles   *repositories.ProfileRepository
	sender     email.Sender
	audit      *audit.Logger
	validate   *validator.Validator
	appURL     string
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(store docstore.Store, businesses *repositories.BusinessRepository, sender email.Sender, auditLog *audit.Logger, appURL string) *Service {
	return &Service{
		store:      store,
		businesses: businesses,
		profiles:   repositories.NewProfileRepository(store),
		sender:     sender,
		audit:      auditLog,
		validate:   validator.New(),
		appURL:     appURL,
		now:        time.Now,
		log:        logger.With("cards"),
	}
}

// CreateCard stores a new card. typeOfProfile is copied from the profile
// listing typeOfCards at creation time; it is kept current afterwards only
// by template reconciliation.
func (s *Service) CreateCard(ctx context.Context, businessID, userID string, in *CreateInput) (*Created, error) {
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	for _, key := range reservedFields {
		if _, ok := in.Fields[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrReservedField, key)
		}
	}

	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}

	profile, err := s.profiles.FindByTypeOfCards(ctx, businessID, in.TypeOfCards)
	if err != nil {
		return nil, fmt.Errorf("find profile for %s: %w", in.TypeOfCards, err)
	}

	ts := models.Timestamp(s.now())
	doc := docstore.Document{}
	keys := make([]string, 0, len(in.Fields))
	for key, value := range in.Fields {
		doc[key] = value
		keys = append(keys, key)
	}
	sort.Strings(keys)

	history := make([]models.HistoryEntry, 0, len(keys))
	for _, key := range keys {
		history = append(history, models.HistoryEntry{Field: key, Value: in.Fields[key], Timestamp: ts})
	}

	doc[models.FieldTypeOfCards] = in.TypeOfCards
	doc[models.FieldHistory] = history
	doc["createdBy"] = userID
	doc["createdAt"] = ts

	created := &Created{ID: uuid.NewString(), TypeOfCards: in.TypeOfCards, Data: doc}
	if profile != nil {
		created.TypeOfProfile = profile.Name
		doc[models.FieldTypeOfProfile] = profile.Name
	}

	batch := s.store.NewBatch()
	batch.Set(docstore.Doc(docstore.Cards(businessID), created.ID), doc)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}

	s.notifyOwner(business, created)
	s.audit.Log(ctx, businessID, userID, audit.ActionCardCreated, "card", created.ID, map[string]interface{}{"typeOfCards": in.TypeOfCards})
	return created, nil
}

func (s *Service) notifyOwner(business *models.Business, card *Created) {
	if business.OwnerEmail == "" {
		return
	}
	msg, err := email.NewCardMessage(business.OwnerEmail, email.NewCardData{
		Business:    business.Name,
		TypeOfCards: card.TypeOfCards,
		CardID:      card.ID,
		Link:        email.Link(s.appURL, "/cards/"+card.ID),
	})
	if err != nil {
		s.log.Error().Err(err).Str("card_id", card.ID).Msg("failed to render card notification")
		return
	}
	email.SendAsync(s.sender, msg)
}
