package models

import "time"

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"

	InvitationPending  = "pending"
	InvitationConsumed = "consumed"
	InvitationExpired  = "expired"
)

type Business struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerUID   string `json:"ownerUid"`
	OwnerEmail string `json:"ownerEmail"`
	CreatedAt  string `json:"createdAt"`
}

// User is the account record an identity token is issued for.
type User struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"passwordHash"`
	BusinessID   string `json:"businessId"`
	Role         string `json:"role"`
	CreatedAt    string `json:"createdAt"`
}

type TeamMember struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	FullName    string   `json:"fullName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"createdAt"`
}

type Invitation struct {
	InvitationCode string   `json:"invitationCode"`
	Email          string   `json:"email"`
	BusinessID     string   `json:"businessId"`
	Status         string   `json:"status"`
	Permissions    []string `json:"permissions"`
	InvitedBy      string   `json:"invitedBy"`
	CreatedAt      string   `json:"createdAt"`
	ExpiresAt      string   `json:"expiresAt"`
}

func (i *Invitation) Expired(now time.Time) bool {
	expires, err := time.Parse(time.RFC3339Nano, i.ExpiresAt)
	if err != nil {
		return true
	}
	return !now.Before(expires)
}

// SheetsStructure orders sheets in the UI. It starts empty.
type SheetsStructure struct {
	Structure []Fields `json:"structure"`
}

// Timestamp formats t the way documents store time values.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
