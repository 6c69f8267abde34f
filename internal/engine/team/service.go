package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrBusinessNotFound   = errors.New("business not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrInvitationConsumed = errors.New("invitation already used")
	ErrEmailMismatch      = errors.New("email does not match invitation")
	ErrMemberNotFound     = errors.New("team member not found")
	ErrCannotDeleteOwner  = errors.New("the business owner cannot be deleted")
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	BusinessID string
	UserID     string
	Email      string
}

type Options struct {
	InvitationTTL time.Duration
	AppURL        string
}

type Service struct {
	store       docstore.Store
	businesses  *repositories.BusinessRepository
	users       *repositories.UserRepository
	members     *repositories.TeamMemberRepository
	invitations *repositories.InvitationRepository
	sender      email.Sender
	audit       *audit.Logger
	validate    *validator.Validator
	opts        Options
	now         func() time.Time
	log         zerolog.Logger
}

func NewService(store docstore.Store, businesses *repositories.BusinessRepository, sender email.Sender, auditLog *audit.Logger, opts Options) *Service {
	if opts.InvitationTTL <= 0 {
		opts.InvitationTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:       store,
		businesses:  businesses,
		users:       repositories.NewUserRepository(store),
		members:     repositories.NewTeamMemberRepository(store),
		invitations: repositories.NewInvitationRepository(store),
		sender:      sender,
		audit:       auditLog,
		validate:    validator.New(),
		opts:        opts,
		now:         time.Now,
		log:         logger.With("team"),
	}
}

type BusinessSignUpInput struct {
	BusinessName string `json:"businessName" validate:"required,max=120"`
	Email        string `json:"email" validate:"required,email,no_disposable_email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"fullName" validate:"required,max=120"`
}

// BusinessSignUp creates a business with its empty sheets structure, the
// owner team member and the owner's account in one batch.
func (s *Service) BusinessSignUp(ctx context.Context, in *BusinessSignUpInput) (*models.Business, *models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, nil, err
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := models.Timestamp(s.now())
	business := &models.Business{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.BusinessName),
		OwnerUID:   uuid.NewString(),
		OwnerEmail: in.Email,
		CreatedAt:  now,
	}
	user := &models.User{
		UID:          business.OwnerUID,
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: string(hash),
		BusinessID:   business.ID,
		Role:         models.RoleOwner,
		CreatedAt:    now,
	}
	member := &models.TeamMember{
		UID:         user.UID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        models.RoleOwner,
		Permissions: []string{},
		CreatedAt:   now,
	}

	batch := s.store.NewBatch()
	if err := stage(batch, docstore.BusinessPath(business.ID), business); err != nil {
		return nil, nil, err
	}
	if err := stage(batch, docstore.Doc(docstore.Sheets(business.ID), "structure"), &models.SheetsStructure{Structure: []models.Fields{}}); err != nil {
		return nil, nil, err
	}
	if err := stage(batch, docstore.Doc(docstore.TeamMembers(business.ID), member.UID), member); err != nil {
		return nil, nil, err
	}
	if err := stage(batch, docstore.Doc(docstore.UsersCollection, user.UID), user); err != nil {
		return nil, nil, err
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("create business: %w", err)
	}

	s.log.Info().Str("business_id", business.ID).Str("owner_uid", user.UID).Msg("business signed up")
	s.audit.Log(ctx, business.ID, user.UID, audit.ActionBusinessSignUp, "business", business.ID, nil)
	return business, user, nil
}

type InvitationInput struct {
	Email       string   `json:"email" validate:"required,email"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// SendInvitation stores a pending invitation and emails its link. Email
// delivery happens in the background and never fails the call.
func (s *Service) SendInvitation(ctx context.Context, actor Actor, in *InvitationInput) (*models.Invitation, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	business, err := s.businesses.GetByID(ctx, actor.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}

	now := s.now()
	permissions := in.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	invitation := &models.Invitation{
		InvitationCode: uuid.NewString(),
		Email:          in.Email,
		BusinessID:     business.ID,
		Status:         models.InvitationPending,
		Permissions:    permissions,
		InvitedBy:      actor.UserID,
		CreatedAt:      models.Timestamp(now),
		ExpiresAt:      models.Timestamp(now.Add(s.opts.InvitationTTL)),
	}

	batch := s.store.NewBatch()
	if err := stage(batch, docstore.Doc(docstore.InvitationsCollection, invitation.InvitationCode), invitation); err != nil {
		return nil, err
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store invitation: %w", err)
	}

	msg, err := email.InvitationMessage(invitation.Email, email.InvitationData{
		Inviter:   actor.Email,
		Business:  business.Name,
		Link:      email.Link(s.opts.AppURL, "/join?code="+invitation.InvitationCode),
		ExpiresAt: now.Add(s.opts.InvitationTTL).UTC().Format("January 2, 2006"),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render invitation email")
	} else {
		email.SendAsync(s.sender, msg)
	}

	s.audit.Log(ctx, business.ID, actor.UserID, audit.ActionInvitationSent, "invitation", invitation.InvitationCode, map[string]interface{}{"email": invitation.Email})
	return invitation, nil
}

type TeamMemberSignUpInput struct {
	InvitationCode string `json:"invitationCode" validate:"required,segment"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	FullName       string `json:"fullName" validate:"required,max=120"`
}

// TeamMemberSignUp consumes an invitation and creates the member's account.
// The commit is guarded by the invitation still being pending, so two
// concurrent sign-ups with one code cannot both succeed.
func (s *Service) TeamMemberSignUp(ctx context.Context, in *TeamMemberSignUpInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	invitation, err := s.invitations.GetByCode(ctx, in.InvitationCode)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}

	now := s.now()
	switch {
	case invitation.Status == models.InvitationConsumed:
		return nil, ErrInvitationConsumed
	case invitation.Status == models.InvitationExpired || invitation.Expired(now):
		return nil, ErrInvitationExpired
	case invitation.Status != models.InvitationPending:
		return nil, ErrInvitationNotFound
	case normalizeEmail(invitation.Email) != in.Email:
		return nil, ErrEmailMismatch
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ts := models.Timestamp(now)
	user := &models.User{
		UID:          uuid.NewString(),
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: string(hash),
		BusinessID:   invitation.BusinessID,
		Role:         models.RoleMember,
		CreatedAt:    ts,
	}
	member := &models.TeamMember{
		UID:         user.UID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        models.RoleMember,
		Permissions: invitation.Permissions,
		CreatedAt:   ts,
	}

	invitationPath := docstore.Doc(docstore.InvitationsCollection, invitation.InvitationCode)
	batch := s.store.NewBatch()
	batch.Require(invitationPath, "status", models.InvitationPending)
	batch.Update(invitationPath, docstore.Document{
		"status":     models.InvitationConsumed,
		"consumedBy": user.UID,
		"consumedAt": ts,
	})
	if err := stage(batch, docstore.Doc(docstore.TeamMembers(invitation.BusinessID), member.UID), member); err != nil {
		return nil, err
	}
	if err := stage(batch, docstore.Doc(docstore.UsersCollection, user.UID), user); err != nil {
		return nil, err
	}

	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return nil, ErrInvitationConsumed
		}
		return nil, fmt.Errorf("consume invitation: %w", err)
	}

	s.log.Info().Str("business_id", user.BusinessID).Str("uid", user.UID).Msg("team member joined")
	s.audit.Log(ctx, user.BusinessID, user.UID, audit.ActionTeamMemberJoined, "team_member", user.UID, map[string]interface{}{"invitationCode": invitation.InvitationCode})
	return user, nil
}

// DeleteTeamMember removes a member and their account from the actor's
// business. The owner cannot be removed.
func (s *Service) DeleteTeamMember(ctx context.Context, actor Actor, memberUID string) error {
	if memberUID == actor.UserID {
		return ErrCannotDeleteOwner
	}

	member, err := s.members.Get(ctx, actor.BusinessID, memberUID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	if member.Role == models.RoleOwner {
		return ErrCannotDeleteOwner
	}

	batch := s.store.NewBatch()
	batch.Delete(docstore.Doc(docstore.TeamMembers(actor.BusinessID), memberUID))

	user, err := s.users.GetByUID(ctx, memberUID)
	if err != nil {
		return err
	}
	if user != nil && user.BusinessID == actor.BusinessID {
		batch.Delete(docstore.Doc(docstore.UsersCollection, memberUID))
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}

	s.log.Info().Str("business_id", actor.BusinessID).Str("uid", memberUID).Msg("team member deleted")
	s.audit.Log(ctx, actor.BusinessID, actor.UserID, audit.ActionTeamMemberDelete, "team_member", memberUID, nil)
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, address string) error {
	existing, err := s.users.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

func stage(batch docstore.Batch, path string, v interface{}) error {
	doc, err := models.ToDocument(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	batch.Set(path, doc)
	return nil
}

func normalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
