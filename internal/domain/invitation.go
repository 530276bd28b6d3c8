package domain

import (
	"strings"
	"time"
)

// Relationship of the invitee to the inviting family.
type Relationship string

const (
	RelationshipParent      Relationship = "parent"
	RelationshipGuardian    Relationship = "guardian"
	RelationshipChild       Relationship = "child"
	RelationshipSibling     Relationship = "sibling"
	RelationshipGrandparent Relationship = "grandparent"
	RelationshipOther       Relationship = "other"
)

// Valid reports whether r is one of the known relationships.
func (r Relationship) Valid() bool {
	switch r {
	case RelationshipParent, RelationshipGuardian, RelationshipChild,
		RelationshipSibling, RelationshipGrandparent, RelationshipOther:
		return true
	}
	return false
}

// InviteBasicInfo is the first step of the invitation wizard.
type InviteBasicInfo struct {
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Relationship Relationship `json:"relationship"`
}

// Complete reports whether every field needed for a preview is set.
func (b InviteBasicInfo) Complete() bool {
	return strings.TrimSpace(b.Email) != "" &&
		strings.TrimSpace(b.Name) != "" &&
		b.Relationship != ""
}

// FamilyImpact projects how the family changes once the invitee joins.
type FamilyImpact struct {
	CurrentMembers   int            `json:"current_members"`
	ProjectedMembers int            `json:"projected_members"`
	RoleCounts       map[string]int `json:"role_counts,omitempty"`
	Summary          string         `json:"summary,omitempty"`
}

// InvitationPreview is fetched from the Auth API while the basic step is
// filled in. It is a cache, never durable state.
type InvitationPreview struct {
	Impact           FamilyImpact `json:"impact"`
	RecommendedRole  string       `json:"recommended_role"`
	Permissions      []string     `json:"permissions"`
	SecurityWarnings []string     `json:"security_warnings,omitempty"`
}

// RelationshipData is what the relationship and permissions steps settle.
type RelationshipData struct {
	Relationship Relationship `json:"relationship"`
	Role         string       `json:"role"`
	Permissions  []string     `json:"permissions"`
}

// Expiration bounds for invitation links, in days.
const (
	MinInviteExpirationDays     = 1
	MaxInviteExpirationDays     = 30
	DefaultInviteExpirationDays = 7
)

// SendOptions are the final-step options of the invitation wizard.
type SendOptions struct {
	CustomMessage  string `json:"custom_message,omitempty"`
	IncludeQR      bool   `json:"include_qr"`
	SendReminder   bool   `json:"send_reminder"`
	ExpirationDays int    `json:"expiration_days"`
}

// DefaultSendOptions returns the options a fresh wizard starts with.
func DefaultSendOptions() SendOptions {
	return SendOptions{SendReminder: true, ExpirationDays: DefaultInviteExpirationDays}
}

// InvitationRequest is the single finalize call of the invitation wizard.
type InvitationRequest struct {
	Basic        InviteBasicInfo  `json:"basic"`
	Relationship RelationshipData `json:"relationship"`
	Options      SendOptions      `json:"options"`
}

// InvitationResult is returned by the Auth API once an invitation is sent.
type InvitationResult struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	InviteURL string    `json:"invite_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// QRCode is an on-demand rendering of an invitation link.
type QRCode struct {
	ImageDataURL string    `json:"image_data_url"`
	InviteURL    string    `json:"invite_url,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}
