package team

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cardsheets/internal/platform/audit"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/email"
	"cardsheets/internal/platform/models"
	"cardsheets/internal/platform/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeSender struct {
	sent chan email.Message
}

func (f *fakeSender) Send(msg email.Message) error {
	f.sent <- msg
	return nil
}

var start = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *docstore.MemoryStore, *fakeSender) {
	t.Helper()
	store := docstore.NewMemoryStore()
	sender := &fakeSender{sent: make(chan email.Message, 4)}
	auditLog := audit.NewLogger(store)
	t.Cleanup(auditLog.Wait)

	svc := NewService(store, repositories.NewBusinessRepository(store, 0), sender, auditLog, Options{AppURL: "https://app.example.com"})
	svc.now = func() time.Time { return start }
	return svc, store, sender
}

func signUpOwner(t *testing.T, svc *Service) (*models.Business, *models.User) {
	t.Helper()
	business, owner, err := svc.BusinessSignUp(context.Background(), &BusinessSignUpInput{
		BusinessName: "Acme",
		Email:        "Owner@Acme.io ",
		Password:     "correct-horse",
		FullName:     "Olive Owner",
	})
	require.NoError(t, err)
	return business, owner
}

func TestBusinessSignUp(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	business, owner := signUpOwner(t, svc)

	assert.Equal(t, "owner@acme.io", owner.Email)
	assert.Equal(t, models.RoleOwner, owner.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("correct-horse")))

	snap, err := store.Get(ctx, docstore.BusinessPath(business.ID))
	require.NoError(t, err)
	assert.Equal(t, "Acme", snap.Data["name"])

	sheets, err := store.Get(ctx, docstore.Doc(docstore.Sheets(business.ID), "structure"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, sheets.Data["structure"])

	member, err := store.Get(ctx, docstore.Doc(docstore.TeamMembers(business.ID), owner.UID))
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, member.Data["role"])

	_, _, err = svc.BusinessSignUp(ctx, &BusinessSignUpInput{BusinessName: "Other", Email: "owner@acme.io", Password: "another-pass", FullName: "X"})
	assert.True(t, errors.Is(err, ErrEmailTaken), "got %v", err)

	_, _, err = svc.BusinessSignUp(ctx, &BusinessSignUpInput{BusinessName: "Other", Email: "not-an-email", Password: "short", FullName: "X"})
	assert.Error(t, err)
}

func TestInvitationLifecycle(t *testing.T) {
	svc, store, sender := setup(t)
	ctx := context.Background()
	business, owner := signUpOwner(t, svc)
	actor := Actor{BusinessID: business.ID, UserID: owner.UID, Email: owner.Email}

	invitation, err := svc.SendInvitation(ctx, actor, &InvitationInput{Email: "new@acme.io", Permissions: []string{"cards:write"}})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.Equal(t, models.Timestamp(start.Add(7*24*time.Hour)), invitation.ExpiresAt)

	select {
	case msg := <-sender.sent:
		assert.Equal(t, "new@acme.io", msg.To)
		assert.Contains(t, msg.TextBody, invitation.InvitationCode)
	case <-time.After(time.Second):
		t.Fatal("Expected invitation email to be sent")
	}

	signUp := func(emailAddr string) (*models.User, error) {
		return svc.TeamMemberSignUp(ctx, &TeamMemberSignUpInput{
			InvitationCode: invitation.InvitationCode,
			Email:          emailAddr,
			Password:       "member-pass",
			FullName:       "Nina New",
		})
	}

	_, err = signUp("someone-else@acme.io")
	assert.True(t, errors.Is(err, ErrEmailMismatch), "got %v", err)

	member, err := signUp("new@acme.io")
	require.NoError(t, err)
	assert.Equal(t, business.ID, member.BusinessID)
	assert.Equal(t, models.RoleMember, member.Role)

	snap, err := store.Get(ctx, docstore.Doc(docstore.InvitationsCollection, invitation.InvitationCode))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationConsumed, snap.Data["status"])

	_, err = signUp("new@acme.io")
	assert.True(t, errors.Is(err, ErrInvitationConsumed), "got %v", err)
}

func TestTeamMemberSignUp_Rejects(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	business, owner := signUpOwner(t, svc)

	invitation, err := svc.SendInvitation(ctx, Actor{BusinessID: business.ID, UserID: owner.UID}, &InvitationInput{Email: "late@acme.io"})
	require.NoError(t, err)

	_, err = svc.TeamMemberSignUp(ctx, &TeamMemberSignUpInput{InvitationCode: "missing", Email: "late@acme.io", Password: "member-pass", FullName: "L"})
	assert.True(t, errors.Is(err, ErrInvitationNotFound), "got %v", err)

	svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
	_, err = svc.TeamMemberSignUp(ctx, &TeamMemberSignUpInput{InvitationCode: invitation.InvitationCode, Email: "late@acme.io", Password: "member-pass", FullName: "L"})
	assert.True(t, errors.Is(err, ErrInvitationExpired), "got %v", err)
}

func TestTeamMemberSignUp_ConcurrentConsumesOnce(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	business, owner := signUpOwner(t, svc)

	invitation, err := svc.SendInvitation(ctx, Actor{BusinessID: business.ID, UserID: owner.UID}, &InvitationInput{Email: "race@acme.io"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.TeamMemberSignUp(ctx, &TeamMemberSignUpInput{
				InvitationCode: invitation.InvitationCode,
				Email:          "race@acme.io",
				Password:       "member-pass",
				FullName:       "R",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestDeleteTeamMember(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	business, owner := signUpOwner(t, svc)
	actor := Actor{BusinessID: business.ID, UserID: owner.UID}

	invitation, err := svc.SendInvitation(ctx, actor, &InvitationInput{Email: "gone@acme.io"})
	require.NoError(t, err)
	member, err := svc.TeamMemberSignUp(ctx, &TeamMemberSignUpInput{InvitationCode: invitation.InvitationCode, Email: "gone@acme.io", Password: "member-pass", FullName: "G"})
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.DeleteTeamMember(ctx, actor, owner.UID), ErrCannotDeleteOwner))
	assert.True(t, errors.Is(svc.DeleteTeamMember(ctx, actor, "nobody"), ErrMemberNotFound))

	require.NoError(t, svc.DeleteTeamMember(ctx, actor, member.UID))

	snap, err := store.Get(ctx, docstore.Doc(docstore.TeamMembers(business.ID), member.UID))
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	snap, err = store.Get(ctx, docstore.Doc(docstore.UsersCollection, member.UID))
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}
