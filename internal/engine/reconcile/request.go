package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"cardsheets/internal/platform/models"
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrBusinessNotFound = errors.New("business not found")
)

// ActionRemove marks a profile or template entry for deletion.
const ActionRemove = "remove"

// Request is the body of the card template reconciliation endpoint.
type Request struct {
	BusinessID string           `json:"businessId"`
	Profiles   []ProfileInput   `json:"profiles,omitempty"`
	Updates    []TemplateUpdate `json:"updates,omitempty"`
}

// ProfileInput creates, renames or removes a TemplateProfile.
type ProfileInput struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Templates []models.Fields `json:"templates,omitempty"`
	Pipelines []interface{}   `json:"pipelines,omitempty"`
	Action    string          `json:"action,omitempty"`
}

// TemplateUpdate is the legacy CardTemplate mutation.
type TemplateUpdate struct {
	DocID          string        `json:"docId"`
	TypeOfCards    string        `json:"typeOfCards"`
	NewTypeOfCards string        `json:"newTypeOfCards,omitempty"`
	DeletedKeys    []string      `json:"deletedKeys,omitempty"`
	NewTemplate    models.Fields `json:"newTemplate,omitempty"`
	Action         string        `json:"action,omitempty"`
}

// Validate checks the request shape. It never touches the store.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return fmt.Errorf("%w: businessId", ErrMissingField)
	}
	if !validID(r.BusinessID) {
		return fmt.Errorf("%w: businessId must not contain '/'", ErrMissingField)
	}
	if len(r.Profiles) == 0 && len(r.Updates) == 0 {
		return fmt.Errorf("%w: profiles or updates must be a non-empty array", ErrMissingField)
	}
	return nil
}

// validID rejects ids that cannot be used as a single path segment.
func validID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.Contains(id, "/")
}
