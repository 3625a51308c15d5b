package domain

import "time"

type UsageAction string

const (
	ActionIssue    UsageAction = "issue"
	ActionValidate UsageAction = "validate"
	ActionUse      UsageAction = "use"
	ActionRevoke   UsageAction = "revoke"
	ActionRotate   UsageAction = "rotate"
)

type TokenKind string

const (
	KindInvite   TokenKind = "invite"
	KindAPIToken TokenKind = "api_token"
)

// UsageEntry is one append-only row of the usage log. TokenID is empty when
// the presented secret did not resolve to any record.
type UsageEntry struct {
	ID          string
	Kind        TokenKind
	TokenID     string
	PrincipalID string
	Action      UsageAction
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}
