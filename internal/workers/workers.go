package workers

import (
	"context"
	"errors"
	"time"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/models"
	"cardsheets/internal/platform/repositories"
)

// ExpireInvitations marks pending invitations past their expiry as expired
// and returns how many were changed. Each invitation is updated in its own
// batch guarded by status == pending, so one consumed in the meantime is
// left alone.
func ExpireInvitations(ctx context.Context, store docstore.Store, now time.Time) (int, error) {
	log := logger.With("workers")

	pending, err := repositories.NewInvitationRepository(store).ListPending(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range pending {
		if !inv.Expired(now) {
			continue
		}

		path := docstore.Doc(docstore.InvitationsCollection, inv.InvitationCode)
		batch := store.NewBatch()
		batch.Require(path, "status", models.InvitationPending)
		batch.Update(path, docstore.Document{"status": models.InvitationExpired})

		if err := batch.Commit(ctx); err != nil {
			if errors.Is(err, docstore.ErrPreconditionFailed) {
				continue
			}
			return expired, err
		}
		expired++
		log.Info().Str("invitation_code", inv.InvitationCode).Str("business_id", inv.BusinessID).Msg("invitation expired")
	}

	return expired, nil
}

// Every runs fn immediately and then on every tick until ctx is done.
func Every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	log := logger.With("workers")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("worker", name).Msg("worker run failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
