package domain

import "time"

type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeRead, ScopeWrite, ScopeAdmin:
		return true
	}
	return false
}

// APIToken is a long-lived bearer credential.
type APIToken struct {
	ID                string
	OwnerID           string // empty means the token is disabled
	TokenHash         string
	HashScheme        string
	ClientName        string
	Scope             Scope
	ExpiresAt         *time.Time // nil never expires
	RevokedAt         *time.Time
	RevokedBy         string
	DeviceFingerprint string
	PredecessorID     string
	LastUsedAt        *time.Time
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// Expired reports whether the token has an expiry that has passed at now.
func (t APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Live reports whether the token is neither revoked nor expired.
func (t APIToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && t.DeletedAt == nil && !t.Expired(now)
}

type IPRuleKind string

const (
	IPAllow IPRuleKind = "allow"
	IPDeny  IPRuleKind = "deny"
)

func (k IPRuleKind) Valid() bool { return k == IPAllow || k == IPDeny }

// IPRule restricts where an API token may be presented from.
type IPRule struct {
	ID        string
	TokenID   string
	IP        string
	Kind      IPRuleKind
	CreatedAt time.Time
}
