package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement it and expose one sub-repository per table group.
type Store interface {
	Principals() Principals
	Invites() Invites
	APITokens() APITokens
	IPRules() IPRules
	UsageLogs() UsageLogs
	WebhookEvents() WebhookEvents
	RateCounters() RateCounters
	TOTPDevices() TOTPDevices
	AuthCodes() AuthCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Repositories used inside fn must come from tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Principals is the read model of accounts published by the accounts
// subsystem.
type Principals interface {
	GetPrincipal(ctx context.Context, id string) (domain.Principal, error)

	// UpsertPrincipal is used by the accounts sync and by tests.
	UpsertPrincipal(ctx context.Context, p domain.Principal) error

	// LockPrincipal serialises quota checks for one principal until the
	// enclosing transaction ends. A no-op where the driver already
	// serialises writers.
	LockPrincipal(ctx context.Context, id string) error
}

type Invites interface {
	// CreateInvite writes a new invite in state NEW.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	GetInviteByID(ctx context.Context, id string) (domain.Invite, error)

	// GetInviteByLookup resolves the pepper-keyed lookup digest of a raw code.
	GetInviteByLookup(ctx context.Context, lookup string) (domain.Invite, error)

	// CountInvitesIssuedSince counts invites minted by issuer at or after since.
	CountInvitesIssuedSince(ctx context.Context, issuerID string, since time.Time) (int, error)

	// ExpireInvite moves NEW -> EXPIRED. Reports whether this call made the change.
	ExpireInvite(ctx context.Context, id string) (bool, error)

	// MarkInviteUsed moves NEW -> USED if still unexpired at now. Reports
	// whether this call won the transition.
	MarkInviteUsed(ctx context.Context, id, usedBy, usedIP string, now time.Time) (bool, error)

	// RevokeInvite moves NEW -> REVOKED. Reports whether this call made the change.
	RevokeInvite(ctx context.Context, id, revokedBy string, now time.Time) (bool, error)

	// DeleteTerminalInvites removes non-NEW invites, and NEW invites that
	// expired, whose expiry is before cutoff.
	DeleteTerminalInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

type APITokens interface {
	CreateAPIToken(ctx context.Context, t domain.APIToken) error

	// GetAPITokenByID excludes soft-deleted tokens.
	GetAPITokenByID(ctx context.Context, id string) (domain.APIToken, error)

	// GetAPITokenByIDIncludingDeleted also returns soft-deleted tokens.
	GetAPITokenByIDIncludingDeleted(ctx context.Context, id string) (domain.APIToken, error)

	// GetActiveAPITokenByHash returns an unrevoked, undeleted token by digest.
	GetActiveAPITokenByHash(ctx context.Context, hash string) (domain.APIToken, error)

	// ListAPITokensByOwner returns undeleted tokens, newest first.
	ListAPITokensByOwner(ctx context.Context, ownerID string) ([]domain.APIToken, error)

	CountAPITokensIssuedSince(ctx context.Context, ownerID string, since time.Time) (int, error)

	// RevokeAPIToken sets revoked_at/revoked_by and soft-deletes. Reports
	// whether this call made the change.
	RevokeAPIToken(ctx context.Context, id, revokedBy string, now time.Time) (bool, error)

	TouchAPIToken(ctx context.Context, id string, now time.Time) error

	// DeleteStaleAPITokens hard-deletes tokens revoked or expired before cutoff.
	DeleteStaleAPITokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type IPRules interface {
	CreateIPRule(ctx context.Context, r domain.IPRule) error
	ListIPRulesByToken(ctx context.Context, tokenID string) ([]domain.IPRule, error)
	DeleteIPRule(ctx context.Context, tokenID, ruleID string) (bool, error)
}

type UsageLogs interface {
	AppendUsage(ctx context.Context, e domain.UsageEntry) error

	// ListUsage returns the entries recorded against one token, oldest first.
	// An empty tokenID lists the lookups that resolved to nothing.
	ListUsage(ctx context.Context, kind domain.TokenKind, tokenID string) ([]domain.UsageEntry, error)

	DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type WebhookEvents interface {
	CreateWebhookEvent(ctx context.Context, ev domain.WebhookEvent) error
	GetWebhookEvent(ctx context.Context, id string) (domain.WebhookEvent, error)

	// ListPendingWebhookEvents returns undelivered events, oldest first.
	ListPendingWebhookEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error)

	// MarkWebhookEventDelivered is idempotent: only the first caller to flip
	// the flag sees true.
	MarkWebhookEventDelivered(ctx context.Context, id string, attempts int, at time.Time) (bool, error)

	// RecordWebhookEventAttempts moves the attempt counter from prev to
	// attempts. A stale prev (another sweep got there first) is a no-op.
	RecordWebhookEventAttempts(ctx context.Context, id string, prev, attempts int, at time.Time) (bool, error)

	DeleteDeliveredWebhookEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateCounters is the shared fixed-window counter table.
type RateCounters interface {
	// IncrementRateCounter atomically increments key, starting a new window
	// of the given length when none is open at now. It returns the
	// post-increment count and the window's end.
	IncrementRateCounter(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)

	DeleteExpiredRateCounters(ctx context.Context, now time.Time) (int64, error)
}

type TOTPDevices interface {
	GetTOTPDevice(ctx context.Context, principalID string) (domain.TOTPDevice, error)

	// ReplaceTOTPDevice stores dev, discarding any unconfirmed device of the
	// same principal. Fails with ErrAlreadyExists if a confirmed one exists.
	ReplaceTOTPDevice(ctx context.Context, dev domain.TOTPDevice) error

	ConfirmTOTPDevice(ctx context.Context, principalID string, now time.Time) (bool, error)
	DeleteTOTPDevice(ctx context.Context, principalID string) (bool, error)
}

type AuthCodes interface {
	CreateAuthCode(ctx context.Context, c domain.AuthCode) error

	// GetLatestAuthCode returns the principal's newest unverified code.
	GetLatestAuthCode(ctx context.Context, principalID string) (domain.AuthCode, error)

	// IncrementAuthCodeAttempts bumps the attempt counter and returns the new value.
	IncrementAuthCodeAttempts(ctx context.Context, id string) (int, error)

	MarkAuthCodeVerified(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteExpiredAuthCodes(ctx context.Context, cutoff time.Time) (int64, error)
}
