package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ActionReconcile        = "card_templates.reconcile"
	ActionBusinessSignUp   = "business.signup"
	ActionInvitationSent   = "invitation.sent"
	ActionTeamMemberJoined = "team_member.joined"
	ActionTeamMemberDelete = "team_member.deleted"
	ActionCardCreated      = "card.created"
)

type Entry struct {
	ID           string                 `json:"id"`
	BusinessID   string                 `json:"businessId"`
	UserID       string                 `json:"userId"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    string                 `json:"createdAt"`
}

// Logger appends audit documents under businesses/{id}/auditLogs. Writes
// happen in the background; failures are logged only.
type Logger struct {
	store docstore.Store
	log   zerolog.Logger
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewLogger(store docstore.Store) *Logger {
	return &Logger{store: store, log: logger.With("audit"), now: time.Now}
}

func (l *Logger) Log(ctx context.Context, businessID, userID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	if l == nil || businessID == "" {
		return
	}

	entry := &Entry{
		ID:           uuid.New().String(),
		BusinessID:   businessID,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		CreatedAt:    models.Timestamp(l.now()),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		// The request context is usually cancelled by the time this runs.
		ctx := context.WithoutCancel(ctx)

		doc, err := models.ToDocument(entry)
		if err != nil {
			l.log.Error().Err(err).Str("action", action).Msg("failed to encode audit entry")
			return
		}
		batch := l.store.NewBatch()
		batch.Set(docstore.Doc(docstore.AuditLogs(businessID), entry.ID), doc)
		if err := batch.Commit(ctx); err != nil {
			l.log.Error().Err(err).Str("action", action).Str("business_id", businessID).Msg("failed to write audit entry")
		}
	}()
}

// Wait blocks until every pending audit write has finished.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}

// List returns the newest entries of a business first, at most limit of them.
func List(ctx context.Context, reader docstore.Reader, businessID string, limit int) ([]Entry, error) {
	snaps, err := reader.List(ctx, docstore.AuditLogs(businessID))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(snaps))
	for _, snap := range snaps {
		var entry Entry
		if err := models.FromDocument(snap.Data, &entry); err != nil {
			continue
		}
		entry.ID = snap.ID
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, _ := time.Parse(time.RFC3339Nano, entries[i].CreatedAt)
		b, _ := time.Parse(time.RFC3339Nano, entries[j].CreatedAt)
		return a.After(b)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
