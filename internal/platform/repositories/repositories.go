package repositories

import (
	"context"
	"time"

	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/models"

	gocache "github.com/patrickmn/go-cache"
)

type BusinessRepository struct {
	store docstore.Reader
	known *gocache.Cache
}

// NewBusinessRepository caches positive existence lookups for ttl; a zero
// ttl disables the cache.
func NewBusinessRepository(store docstore.Reader, ttl time.Duration) *BusinessRepository {
	r := &BusinessRepository{store: store}
	if ttl > 0 {
		r.known = gocache.New(ttl, 2*ttl)
	}
	return r
}

func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*models.Business, error) {
	snap, err := r.store.Get(ctx, docstore.BusinessPath(id))
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, nil
	}
	if r.known != nil {
		r.known.SetDefault(id, true)
	}

	business := &models.Business{}
	if err := models.FromDocument(snap.Data, business); err != nil {
		return nil, err
	}
	if business.ID == "" {
		business.ID = snap.ID
	}
	return business, nil
}

func (r *BusinessRepository) Exists(ctx context.Context, id string) (bool, error) {
	if r.known != nil {
		if _, ok := r.known.Get(id); ok {
			return true, nil
		}
	}
	business, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return business != nil, nil
}

type UserRepository struct {
	store docstore.Reader
}

func NewUserRepository(store docstore.Reader) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	snap, err := r.store.Get(ctx, docstore.Doc(docstore.UsersCollection, uid))
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, nil
	}
	user := &models.User{}
	if err := models.FromDocument(snap.Data, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail expects email already normalised to lower case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	snaps, err := r.store.Query(ctx, docstore.UsersCollection, "email", email)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	user := &models.User{}
	if err := models.FromDocument(snaps[0].Data, user); err != nil {
		return nil, err
	}
	return user, nil
}

type TeamMemberRepository struct {
	store docstore.Reader
}

func NewTeamMemberRepository(store docstore.Reader) *TeamMemberRepository {
	return &TeamMemberRepository{store: store}
}

func (r *TeamMemberRepository) Get(ctx context.Context, businessID, uid string) (*models.TeamMember, error) {
	snap, err := r.store.Get(ctx, docstore.Doc(docstore.TeamMembers(businessID), uid))
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, nil
	}
	member := &models.TeamMember{}
	if err := models.FromDocument(snap.Data, member); err != nil {
		return nil, err
	}
	return member, nil
}

type InvitationRepository struct {
	store docstore.Reader
}

func NewInvitationRepository(store docstore.Reader) *InvitationRepository {
	return &InvitationRepository{store: store}
}

func (r *InvitationRepository) GetByCode(ctx context.Context, code string) (*models.Invitation, error) {
	snap, err := r.store.Get(ctx, docstore.Doc(docstore.InvitationsCollection, code))
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, nil
	}
	invitation := &models.Invitation{}
	if err := models.FromDocument(snap.Data, invitation); err != nil {
		return nil, err
	}
	return invitation, nil
}

func (r *InvitationRepository) ListPending(ctx context.Context) ([]*models.Invitation, error) {
	snaps, err := r.store.Query(ctx, docstore.InvitationsCollection, "status", models.InvitationPending)
	if err != nil {
		return nil, err
	}
	invitations := make([]*models.Invitation, 0, len(snaps))
	for _, snap := range snaps {
		inv := &models.Invitation{}
		if err := models.FromDocument(snap.Data, inv); err != nil {
			return nil, err
		}
		if inv.InvitationCode == "" {
			inv.InvitationCode = snap.ID
		}
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

// ProfileRepository reads TemplateProfiles of one business.
type ProfileRepository struct {
	store docstore.Reader
}

func NewProfileRepository(store docstore.Reader) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// FindByTypeOfCards returns the first profile, by id, listing a template
// with typeOfCards, or nil.
func (r *ProfileRepository) FindByTypeOfCards(ctx context.Context, businessID, typeOfCards string) (*models.TemplateProfile, error) {
	snaps, err := r.store.List(ctx, docstore.TemplateProfiles(businessID))
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		profile, err := models.ProfileFromSnapshot(snap)
		if err != nil {
			continue
		}
		if profile.Lists(typeOfCards) {
			return profile, nil
		}
	}
	return nil, nil
}
