package domain

import "time"

type InviteState string

const (
	InviteNew     InviteState = "new"
	InviteUsed    InviteState = "used"
	InviteExpired InviteState = "expired"
	InviteRevoked InviteState = "revoked"
)

// Terminal reports whether no further transition is allowed out of s.
func (s InviteState) Terminal() bool { return s != InviteNew }

// Invite is a single-use onboarding code. The raw code is never stored; it is
// found through CodeLookup and checked against CodeHash/CodeSalt.
type Invite struct {
	ID             string
	CodeLookup     string
	CodeHash       string
	CodeSalt       string
	HashScheme     string
	TargetRole     Role
	State          InviteState
	ExpiresAt      time.Time
	IssuerID       string
	UsedBy         string // empty until redeemed
	OrganizationID string
	IssuedIP       string
	UsedIP         string
	RevokedAt      *time.Time
	RevokedBy      string
	CreatedAt      time.Time
}

// Expired reports whether the invite is past its expiry at now.
func (i Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
