// Package storetest is a driver-agnostic conformance suite for store.Store.
// Each driver package runs it against a freshly migrated database.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run executes every conformance test against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Principals", func(t *testing.T) { testPrincipals(t, newStore(t)) })
	t.Run("Invites", func(t *testing.T) { testInvites(t, newStore(t)) })
	t.Run("APITokens", func(t *testing.T) { testAPITokens(t, newStore(t)) })
	t.Run("IPRules", func(t *testing.T) { testIPRules(t, newStore(t)) })
	t.Run("UsageLogs", func(t *testing.T) { testUsageLogs(t, newStore(t)) })
	t.Run("WebhookEvents", func(t *testing.T) { testWebhookEvents(t, newStore(t)) })
	t.Run("RateCounters", func(t *testing.T) { testRateCounters(t, newStore(t)) })
	t.Run("TOTPDevices", func(t *testing.T) { testTOTPDevices(t, newStore(t)) })
	t.Run("AuthCodes", func(t *testing.T) { testAuthCodes(t, newStore(t)) })
}

// Fixed clock, truncated to what the drivers persist.
var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newInvite(issuer string, expires time.Time) domain.Invite {
	return domain.Invite{
		ID:         uuid.NewString(),
		CodeLookup: uuid.NewString(),
		CodeHash:   "hash",
		CodeSalt:   "salt",
		HashScheme: "pbkdf2-sha256-v1",
		TargetRole: domain.RoleGuest,
		State:      domain.InviteNew,
		ExpiresAt:  expires,
		IssuerID:   issuer,
		IssuedIP:   "10.0.0.1",
		CreatedAt:  t0,
	}
}

func newAPIToken(owner string) domain.APIToken {
	return domain.APIToken{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		TokenHash:  uuid.NewString(),
		HashScheme: "sha256-v1",
		ClientName: "ci",
		Scope:      domain.ScopeRead,
		CreatedAt:  t0,
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	inv := newInvite("issuer", t0.Add(time.Hour))
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Invites().CreateInvite(ctx, inv))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Invites().GetInviteByID(ctx, inv.ID)
	require.ErrorIs(t, err, store.ErrNotFound, "rolled back write must not be visible")

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.ErrorIs(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), sql.ErrTxDone)
		return tx.Invites().CreateInvite(ctx, inv)
	}))

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
}

func testPrincipals(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Principals().GetPrincipal(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	p := domain.Principal{ID: "p1", Role: domain.RoleAdmin, OrganizationID: "org", Active: true}
	require.NoError(t, s.Principals().UpsertPrincipal(ctx, p))

	p.Active = false
	p.Superuser = true
	require.NoError(t, s.Principals().UpsertPrincipal(ctx, p))

	got, err := s.Principals().GetPrincipal(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, p, got)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Principals().LockPrincipal(ctx, "p1"))
		return tx.Principals().LockPrincipal(ctx, "unknown")
	}))
}

func testInvites(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Invites()

	live := newInvite("alice", t0.Add(time.Hour))
	live.OrganizationID = "org-1"
	require.NoError(t, repo.CreateInvite(ctx, live))

	dup := newInvite("alice", t0.Add(time.Hour))
	dup.CodeLookup = live.CodeLookup
	require.ErrorIs(t, repo.CreateInvite(ctx, dup), store.ErrAlreadyExists)

	got, err := repo.GetInviteByLookup(ctx, live.CodeLookup)
	require.NoError(t, err)
	require.Equal(t, live.ID, got.ID)
	require.Equal(t, domain.InviteNew, got.State)
	require.True(t, live.ExpiresAt.Equal(got.ExpiresAt))
	require.Empty(t, got.UsedBy)
	require.Nil(t, got.RevokedAt)
	require.Equal(t, "org-1", got.OrganizationID)

	_, err = repo.GetInviteByLookup(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := repo.CountInvitesIssuedSince(ctx, "alice", t0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = repo.CountInvitesIssuedSince(ctx, "alice", t0.Add(time.Millisecond))
	require.NoError(t, err)
	require.Zero(t, n)

	t.Run("mark used wins once", func(t *testing.T) {
		ok, err := repo.MarkInviteUsed(ctx, live.ID, "bob", "10.0.0.2", t0)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.MarkInviteUsed(ctx, live.ID, "carol", "10.0.0.3", t0)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := repo.GetInviteByID(ctx, live.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InviteUsed, got.State)
		require.Equal(t, "bob", got.UsedBy)
		require.Equal(t, "10.0.0.2", got.UsedIP)

		ok, err = repo.RevokeInvite(ctx, live.ID, "admin", t0)
		require.NoError(t, err)
		require.False(t, ok, "used invites cannot be revoked")
	})

	t.Run("mark used refuses past expiry", func(t *testing.T) {
		inv := newInvite("alice", t0)
		require.NoError(t, repo.CreateInvite(ctx, inv))

		ok, err := repo.MarkInviteUsed(ctx, inv.ID, "bob", "", t0)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = repo.ExpireInvite(ctx, inv.ID)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = repo.ExpireInvite(ctx, inv.ID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("revoke", func(t *testing.T) {
		inv := newInvite("alice", t0.Add(time.Hour))
		require.NoError(t, repo.CreateInvite(ctx, inv))

		ok, err := repo.RevokeInvite(ctx, inv.ID, "admin", t0)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := repo.GetInviteByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InviteRevoked, got.State)
		require.Equal(t, "admin", got.RevokedBy)
		require.NotNil(t, got.RevokedAt)
		require.True(t, t0.Equal(*got.RevokedAt))

		ok, err = repo.MarkInviteUsed(ctx, inv.ID, "bob", "", t0)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("retention", func(t *testing.T) {
		deleted, err := repo.DeleteTerminalInvites(ctx, t0.Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, deleted, "only the invite that expired at t0")
	})
}

func testAPITokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.APITokens()

	older := newAPIToken("alice")
	require.NoError(t, repo.CreateAPIToken(ctx, older))

	newer := newAPIToken("alice")
	newer.CreatedAt = t0.Add(time.Second)
	exp := t0.Add(24 * time.Hour)
	newer.ExpiresAt = &exp
	newer.PredecessorID = older.ID
	newer.DeviceFingerprint = "fp"
	require.NoError(t, repo.CreateAPIToken(ctx, newer))

	require.NoError(t, repo.CreateAPIToken(ctx, newAPIToken("bob")))

	list, err := repo.ListAPITokensByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID, "newest first")
	require.Equal(t, older.ID, list[1].ID)
	require.Equal(t, older.ID, list[0].PredecessorID)
	require.NotNil(t, list[0].ExpiresAt)
	require.True(t, exp.Equal(*list[0].ExpiresAt))
	require.Nil(t, list[1].ExpiresAt)

	got, err := repo.GetActiveAPITokenByHash(ctx, newer.TokenHash)
	require.NoError(t, err)
	require.Equal(t, "fp", got.DeviceFingerprint)

	require.NoError(t, repo.TouchAPIToken(ctx, newer.ID, t0.Add(time.Minute)))
	got, err = repo.GetAPITokenByID(ctx, newer.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)

	n, err := repo.CountAPITokensIssuedSince(ctx, "alice", t0)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err := repo.RevokeAPIToken(ctx, older.ID, "alice", t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.RevokeAPIToken(ctx, older.ID, "alice", t0.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, ok, "second revoke is a no-op")

	_, err = repo.GetAPITokenByID(ctx, older.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetActiveAPITokenByHash(ctx, older.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	gone, err := repo.GetAPITokenByIDIncludingDeleted(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, gone.RevokedAt)
	require.NotNil(t, gone.DeletedAt)
	require.Equal(t, "alice", gone.RevokedBy)

	n, err = repo.CountAPITokensIssuedSince(ctx, "alice", t0)
	require.NoError(t, err)
	require.Equal(t, 2, n, "revoked tokens still count against the quota")

	deleted, err := repo.DeleteStaleAPITokens(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	got, err = repo.GetAPITokenByID(ctx, newer.ID)
	require.NoError(t, err)
	require.Empty(t, got.PredecessorID, "predecessor link cleared when it is purged")
}

func testIPRules(t *testing.T, s store.Store) {
	ctx := context.Background()

	tok := newAPIToken("alice")
	require.NoError(t, s.APITokens().CreateAPIToken(ctx, tok))

	allow := domain.IPRule{ID: idx.New().String(), TokenID: tok.ID, IP: "10.0.0.1", Kind: domain.IPAllow, CreatedAt: t0}
	deny := domain.IPRule{ID: idx.New().String(), TokenID: tok.ID, IP: "10.0.0.9", Kind: domain.IPDeny, CreatedAt: t0}
	require.NoError(t, s.IPRules().CreateIPRule(ctx, allow))
	require.NoError(t, s.IPRules().CreateIPRule(ctx, deny))

	again := allow
	again.ID = idx.New().String()
	require.ErrorIs(t, s.IPRules().CreateIPRule(ctx, again), store.ErrAlreadyExists)

	rules, err := s.IPRules().ListIPRulesByToken(ctx, tok.ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, allow.ID, rules[0].ID)
	require.Equal(t, domain.IPDeny, rules[1].Kind)

	ok, err := s.IPRules().DeleteIPRule(ctx, "other-token", allow.ID)
	require.NoError(t, err)
	require.False(t, ok, "rule ids are scoped to their token")

	ok, err = s.IPRules().DeleteIPRule(ctx, tok.ID, allow.ID)
	require.NoError(t, err)
	require.True(t, ok)

	rules, err = s.IPRules().ListIPRulesByToken(ctx, tok.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
}

func testUsageLogs(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.UsageLogs()

	for i, action := range []domain.UsageAction{domain.ActionIssue, domain.ActionValidate, domain.ActionUse} {
		require.NoError(t, repo.AppendUsage(ctx, domain.UsageEntry{
			ID:          idx.NewAt(t0).String(),
			Kind:        domain.KindInvite,
			TokenID:     "inv-1",
			PrincipalID: "alice",
			Action:      action,
			IP:          "ip-hash",
			UserAgent:   "curl",
			CreatedAt:   t0.Add(time.Duration(i) * time.Second),
		}))
	}

	// A secret that resolved to nothing is still logged, without a token.
	require.NoError(t, repo.AppendUsage(ctx, domain.UsageEntry{
		ID:        idx.New().String(),
		Kind:      domain.KindInvite,
		Action:    domain.ActionValidate,
		CreatedAt: t0,
	}))

	entries, err := repo.ListUsage(ctx, domain.KindInvite, "inv-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, domain.ActionIssue, entries[0].Action)
	require.Equal(t, domain.ActionUse, entries[2].Action)
	require.Equal(t, "curl", entries[0].UserAgent)

	entries, err = repo.ListUsage(ctx, domain.KindAPIToken, "inv-1")
	require.NoError(t, err)
	require.Empty(t, entries)

	misses, err := repo.ListUsage(ctx, domain.KindInvite, "")
	require.NoError(t, err)
	require.Len(t, misses, 1)
	require.Empty(t, misses[0].TokenID)

	deleted, err := repo.DeleteUsageBefore(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
}

func testWebhookEvents(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.WebhookEvents()

	last := t0
	ev := domain.WebhookEvent{
		ID:            uuid.NewString(),
		EventType:     "invite.created",
		TargetURL:     "https://hooks.example.com/tokens",
		Payload:       []byte(`{"b":1,"a":"x"}`),
		Attempts:      3,
		LastAttemptAt: &last,
		CreatedAt:     t0,
	}
	require.NoError(t, repo.CreateWebhookEvent(ctx, ev))

	pending, err := repo.ListPendingWebhookEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ev.Payload, pending[0].Payload, "payload bytes survive unchanged")
	require.Equal(t, 3, pending[0].Attempts)
	require.False(t, pending[0].Delivered)

	ok, err := repo.RecordWebhookEventAttempts(ctx, ev.ID, 3, 6, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.RecordWebhookEventAttempts(ctx, ev.ID, 3, 6, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, ok, "stale attempt count")

	ok, err = repo.MarkWebhookEventDelivered(ctx, ev.ID, 7, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkWebhookEventDelivered(ctx, ev.ID, 8, t0.Add(3*time.Minute))
	require.NoError(t, err)
	require.False(t, ok, "delivery is recorded once")

	got, err := repo.GetWebhookEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.True(t, got.Delivered)
	require.Equal(t, 7, got.Attempts)

	pending, err = repo.ListPendingWebhookEvents(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	deleted, err := repo.DeleteDeliveredWebhookEvents(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func testRateCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RateCounters()

	for want := int64(1); want <= 3; want++ {
		n, reset, err := repo.IncrementRateCounter(ctx, "k", time.Minute, t0.Add(time.Duration(want)*time.Second))
		require.NoError(t, err)
		require.Equal(t, want, n)
		require.True(t, t0.Add(time.Second+time.Minute).Equal(reset), "window anchored at first hit")
	}

	n, _, err := repo.IncrementRateCounter(ctx, "other", time.Minute, t0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "keys are independent")

	later := t0.Add(2 * time.Minute)
	n, reset, err := repo.IncrementRateCounter(ctx, "k", time.Minute, later)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "lapsed window restarts")
	require.True(t, later.Add(time.Minute).Equal(reset))

	deleted, err := repo.DeleteExpiredRateCounters(ctx, later)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func testTOTPDevices(t *testing.T, s store.Store) {
	ctx := context.Background()

	replace := func(secret string) error {
		return s.WithTx(ctx, func(tx store.Tx) error {
			return tx.TOTPDevices().ReplaceTOTPDevice(ctx, domain.TOTPDevice{
				ID: idx.New().String(), PrincipalID: "alice", SecretSealed: secret, CreatedAt: t0,
			})
		})
	}

	require.NoError(t, replace("first"))
	require.NoError(t, replace("second"), "unconfirmed devices are replaced")

	dev, err := s.TOTPDevices().GetTOTPDevice(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "second", dev.SecretSealed)
	require.Nil(t, dev.ConfirmedAt)

	ok, err := s.TOTPDevices().ConfirmTOTPDevice(ctx, "alice", t0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.TOTPDevices().ConfirmTOTPDevice(ctx, "alice", t0)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, replace("third"), store.ErrAlreadyExists)

	ok, err = s.TOTPDevices().DeleteTOTPDevice(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.TOTPDevices().GetTOTPDevice(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testAuthCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.AuthCodes()

	first := domain.AuthCode{
		ID: idx.NewAt(t0).String(), PrincipalID: "alice", CodeHash: "h1", CodeSalt: "s1",
		HashScheme: "pbkdf2-sha256-v1", ExpiresAt: t0.Add(10 * time.Minute), CreatedAt: t0,
	}
	second := first
	second.ID = idx.NewAt(t0.Add(time.Second)).String()
	second.CodeHash = "h2"
	second.CreatedAt = t0.Add(time.Second)
	require.NoError(t, repo.CreateAuthCode(ctx, first))
	require.NoError(t, repo.CreateAuthCode(ctx, second))

	latest, err := repo.GetLatestAuthCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	n, err := repo.IncrementAuthCodeAttempts(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = repo.IncrementAuthCodeAttempts(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = repo.IncrementAuthCodeAttempts(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := repo.MarkAuthCodeVerified(ctx, second.ID, t0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkAuthCodeVerified(ctx, second.ID, t0)
	require.NoError(t, err)
	require.False(t, ok)

	latest, err = repo.GetLatestAuthCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, latest.ID)

	deleted, err := repo.DeleteExpiredAuthCodes(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
}
