package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/audit"
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/stretchr/testify/require"
)

func TestIssueInvite_OutsidePolicyPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := admin
	inactive.ID = "admin-off"
	inactive.Active = false

	cases := []struct {
		name   string
		issuer domain.Principal
		req    service.IssueInviteRequest
	}{
		{"coordinator mints a peer", coord, service.IssueInviteRequest{TargetRole: domain.RoleCoordinator}},
		{"coordinator mints a superior", coord, service.IssueInviteRequest{TargetRole: domain.RoleAdmin}},
		{"admin mints a role outside the table", admin, service.IssueInviteRequest{TargetRole: domain.RoleAssociate}},
		{"guest mints a guest", guest, service.IssueInviteRequest{TargetRole: domain.RoleGuest}},
		{"inactive admin", inactive, service.IssueInviteRequest{TargetRole: domain.RoleGuest}},
		{"admin in another organization", admin, service.IssueInviteRequest{TargetRole: domain.RoleGuest, OrganizationID: "org-2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, raw, err := f.invites.IssueInvite(ctx, tc.issuer, tc.req, fromHome)
			require.ErrorIs(t, err, service.ErrAuthorization)
			require.Empty(t, raw)

			n, err := f.store.Invites().CountInvitesIssuedSince(ctx, tc.issuer.ID, t0.Add(-24*time.Hour))
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}

	failures := f.audit.Find("invite.issue")
	require.Len(t, failures, len(cases))
	for _, ev := range failures {
		require.Equal(t, audit.StatusFailure, ev.Status)
	}
	require.Empty(t, f.notifier.Events())
}

func TestIssueInvite_NonPolicyRolesAreNeverIssuable(t *testing.T) {
	f := newFixture(t)

	for _, role := range []domain.Role{
		domain.RoleRoot, domain.RoleAdmin, domain.RoleCoordinator,
		domain.RoleNucleated, domain.RoleAssociate,
	} {
		_, _, err := f.invites.IssueInvite(context.Background(), root,
			service.IssueInviteRequest{TargetRole: role}, fromHome)
		require.ErrorIs(t, err, service.ErrAuthorization, "role %s", role)
	}

	// The table cannot grant a peer role either.
	f.invites.Policy = service.Policy{domain.RoleAdmin: {domain.RoleAdmin}}
	_, _, err := f.invites.IssueInvite(context.Background(), admin,
		service.IssueInviteRequest{TargetRole: domain.RoleAdmin}, fromHome)
	require.ErrorIs(t, err, service.ErrAuthorization)
}

func TestIssueInvite_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.invites.IssueInvite(ctx, admin, service.IssueInviteRequest{TargetRole: "ghost"}, fromHome)
	require.ErrorIs(t, err, service.ErrValidation)

	_, _, err = f.invites.IssueInvite(ctx, admin, service.IssueInviteRequest{TargetRole: domain.RoleGuest, TTL: -time.Hour}, fromHome)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "ttl", verr.Field)
}

func TestIssueInvite_Success(t *testing.T) {
	f := newFixture(t)

	inv, raw := f.issueInvite(t)
	require.GreaterOrEqual(t, len(raw), 32)
	require.Equal(t, domain.InviteNew, inv.State)
	require.Equal(t, "org-1", inv.OrganizationID)
	require.Equal(t, fromHome.IP, inv.IssuedIP)
	require.Equal(t, t0.Add(720*time.Hour), inv.ExpiresAt)
	require.NotContains(t, inv.CodeHash, raw)

	stored, err := f.store.Invites().GetInviteByID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InviteNew, stored.State)

	// The raw code leaves the service exactly once, in invite.created.
	deliveries := f.notifier.Deliveries()
	require.Len(t, deliveries, 1)
	require.Equal(t, "invite.created", deliveries[0].Event)
	require.Equal(t, raw, deliveries[0].Payload["code"])
	require.Equal(t, inv.ID, deliveries[0].Payload["id"])

	entries := f.usage(t, domain.KindInvite, inv.ID)
	require.Len(t, entries, 1)
	require.Equal(t, domain.ActionIssue, entries[0].Action)
}

func TestIssueInvite_DailyQuotaResetsAtLocalMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 23:30 local time in UTC+10.
	f.invites.Location = time.FixedZone("AEST", 10*60*60)
	f.clock.Set(time.Date(2025, 3, 1, 13, 30, 0, 0, time.UTC))

	for range 5 {
		f.issueInvite(t)
	}
	_, _, err := f.invites.IssueInvite(ctx, admin, service.IssueInviteRequest{TargetRole: domain.RoleGuest}, fromHome)
	require.ErrorIs(t, err, service.ErrQuotaExceeded)

	n, err := f.store.Invites().CountInvitesIssuedSince(ctx, admin.ID, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 5, n, "the rejected issuance creates nothing")

	// Another issuer has their own quota.
	_, _, err = f.invites.IssueInvite(ctx, coord, service.IssueInviteRequest{TargetRole: domain.RoleGuest}, fromHome)
	require.NoError(t, err)

	// 00:30 local, the next day.
	f.clock.Advance(time.Hour)
	_, _, err = f.invites.IssueInvite(ctx, admin, service.IssueInviteRequest{TargetRole: domain.RoleGuest}, fromHome)
	require.NoError(t, err)
}

func TestValidateByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, raw := f.issueInvite(t)

	got, err := f.invites.ValidateByCode(ctx, "", raw, fromHome)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
	require.Equal(t, domain.InviteNew, got.State)

	entries := f.usage(t, domain.KindInvite, inv.ID)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionValidate, entries[1].Action)
	require.Empty(t, entries[1].PrincipalID)

	_, err = f.invites.ValidateByCode(ctx, "", "", fromHome)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestValidateByCode_UnknownCodeLogsWithoutToken(t *testing.T) {
	f := newFixture(t)
	_, raw := f.issueInvite(t)

	// Flip one character of a real code.
	forged := []byte(raw)
	if forged[0] == 'A' {
		forged[0] = 'B'
	} else {
		forged[0] = 'A'
	}

	_, err := f.invites.ValidateByCode(context.Background(), guest.ID, string(forged), fromHome)
	require.ErrorIs(t, err, service.ErrNotFound)

	misses := f.usage(t, domain.KindInvite, "")
	require.Len(t, misses, 1)
	require.Equal(t, guest.ID, misses[0].PrincipalID)
	require.Equal(t, domain.ActionValidate, misses[0].Action)
}

func TestValidateByCode_LazyExpiryNeverReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, raw, err := f.invites.IssueInvite(ctx, admin,
		service.IssueInviteRequest{TargetRole: domain.RoleGuest, TTL: time.Hour}, fromHome)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	_, err = f.invites.ValidateByCode(ctx, "", raw, fromHome)
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, string(domain.InviteExpired), conflict.State)

	stored, err := f.store.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InviteExpired, stored.State)

	// Winding the clock back does not revive it.
	f.clock.Set(t0)
	_, err = f.invites.ValidateByCode(ctx, "", raw, fromHome)
	require.ErrorIs(t, err, service.ErrConflict)
	_, err = f.invites.Redeem(ctx, guest, inv.ID, raw, fromHome)
	require.ErrorIs(t, err, service.ErrConflict)

	stored, err = f.store.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InviteExpired, stored.State)
	require.Empty(t, stored.UsedBy)
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, raw := f.issueInvite(t)

	got, err := f.invites.Redeem(ctx, guest, inv.ID, raw, fromHome)
	require.NoError(t, err)
	require.Equal(t, domain.InviteUsed, got.State)
	require.Equal(t, guest.ID, got.UsedBy)
	require.Equal(t, fromHome.IP, got.UsedIP)
	require.Equal(t, domain.RoleGuest, got.TargetRole)

	_, err = f.invites.Redeem(ctx, other, inv.ID, raw, fromHome)
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, string(domain.InviteUsed), conflict.State)

	entries := f.usage(t, domain.KindInvite, inv.ID)
	require.Len(t, entries, 3, "issue, use, rejected use")
	require.Equal(t, domain.ActionUse, entries[2].Action)
	require.Equal(t, other.ID, entries[2].PrincipalID)

	require.Equal(t, 1, countEvents(f.notifier, "invite.used"))
	require.Len(t, f.audit.Find("invite.redeem"), 1)
}

func TestRedeem_RequiresCallerAndMatchingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, raw := f.issueInvite(t)
	second, _ := f.issueInvite(t)

	_, err := f.invites.Redeem(ctx, domain.Principal{}, first.ID, raw, fromHome)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = f.invites.Redeem(ctx, guest, first.ID, "", fromHome)
	require.ErrorIs(t, err, service.ErrValidation)

	// A valid code does not redeem a different invite.
	_, err = f.invites.Redeem(ctx, guest, second.ID, raw, fromHome)
	require.ErrorIs(t, err, service.ErrNotFound)

	for _, id := range []string{first.ID, second.ID} {
		stored, err := f.store.Invites().GetInviteByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.InviteNew, stored.State)
	}
}

func TestRedeem_ConcurrentHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, raw := f.issueInvite(t)

	callers := []domain.Principal{guest, other}
	errs := make([]error, len(callers))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, caller := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.invites.Redeem(ctx, caller, inv.ID, raw, fromHome)
		}()
	}
	close(start)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, service.ErrConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)

	stored, err := f.store.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InviteUsed, stored.State)
	require.Contains(t, []string{guest.ID, other.ID}, stored.UsedBy)
	require.Equal(t, 1, countEvents(f.notifier, "invite.used"))
}

func TestInviteRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invites.Limiter = f.limiter(ratelimit.Window{Limit: 2, Period: time.Minute})
	inv, raw := f.issueInvite(t)

	for range 2 {
		_, err := f.invites.ValidateByCode(ctx, guest.ID, raw, fromHome)
		require.NoError(t, err)
	}

	_, err := f.invites.ValidateByCode(ctx, guest.ID, raw, fromHome)
	var limited *service.RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Greater(t, limited.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, limited.RetryAfter, time.Minute)

	// Throttled calls leave no usage row.
	require.Len(t, f.usage(t, domain.KindInvite, inv.ID), 3)

	// Another address is limited separately.
	_, err = f.invites.ValidateByCode(ctx, guest.ID, raw, service.RequestInfo{IP: "198.51.100.1"})
	require.NoError(t, err)

	// Invite throttling is not an audit event.
	require.Empty(t, f.audit.Find("api_token.authenticate"))
	for _, ev := range f.audit.Events() {
		require.Equal(t, audit.StatusSuccess, ev.Status)
	}

	f.clock.Advance(time.Minute)
	_, err = f.invites.ValidateByCode(ctx, guest.ID, raw, fromHome)
	require.NoError(t, err)
}

func TestRevokeInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, raw := f.issueInvite(t)

	_, err := f.invites.RevokeInvite(ctx, coord, inv.ID, fromHome)
	require.ErrorIs(t, err, service.ErrForbidden)

	outsider := admin
	outsider.ID = "admin-2"
	outsider.OrganizationID = "org-2"
	_, err = f.invites.RevokeInvite(ctx, outsider, inv.ID, fromHome)
	require.ErrorIs(t, err, service.ErrNotFound)

	revoked, err := f.invites.RevokeInvite(ctx, admin, inv.ID, fromHome)
	require.NoError(t, err)
	require.True(t, revoked)

	before := f.usage(t, domain.KindInvite, inv.ID)

	revoked, err = f.invites.RevokeInvite(ctx, admin, inv.ID, fromHome)
	require.NoError(t, err)
	require.False(t, revoked)
	require.Equal(t, before, f.usage(t, domain.KindInvite, inv.ID), "no duplicate log row")
	require.Equal(t, 1, countEvents(f.notifier, "invite.revoked"))

	_, err = f.invites.RevokeInvite(ctx, admin, "missing", fromHome)
	require.ErrorIs(t, err, service.ErrNotFound)

	// A redeemed invite cannot be revoked.
	used, usedRaw := f.issueInvite(t)
	_, err = f.invites.Redeem(ctx, guest, used.ID, usedRaw, fromHome)
	require.NoError(t, err)
	_, err = f.invites.RevokeInvite(ctx, admin, used.ID, fromHome)
	require.ErrorIs(t, err, service.ErrConflict)

	_, err = f.invites.ValidateByCode(ctx, "", raw, fromHome)
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestInviteLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, raw := f.issueInvite(t)

	_, err := f.invites.Redeem(ctx, guest, inv.ID, raw, fromHome)
	require.NoError(t, err)

	_, err = f.invites.InviteLogs(ctx, guest, inv.ID)
	require.ErrorIs(t, err, service.ErrForbidden)

	entries, err := f.invites.InviteLogs(ctx, admin, inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionIssue, entries[0].Action)
	require.Equal(t, domain.ActionUse, entries[1].Action)

	_, err = f.invites.InviteLogs(ctx, admin, "missing")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestInvites_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		invites []domain.Invite
		codes   = map[string]bool{}
	)
	for range 5 {
		inv, raw := f.issueInvite(t)
		require.GreaterOrEqual(t, len(raw), 32)
		require.False(t, codes[raw], "codes are unique")
		codes[raw] = true
		invites = append(invites, inv)
	}
	raws := make([]string, 0, len(invites))
	for _, d := range f.notifier.Deliveries() {
		raws = append(raws, d.Payload["code"].(string))
	}

	_, _, err := f.invites.IssueInvite(ctx, admin, service.IssueInviteRequest{TargetRole: domain.RoleGuest}, fromHome)
	require.ErrorIs(t, err, service.ErrQuotaExceeded)

	got, err := f.invites.Redeem(ctx, guest, invites[0].ID, raws[0], fromHome)
	require.NoError(t, err)
	require.Equal(t, invites[0].ID, got.ID)
	require.Equal(t, domain.InviteUsed, got.State)
	require.Equal(t, domain.RoleGuest, got.TargetRole)

	_, err = f.invites.Redeem(ctx, guest, invites[0].ID, raws[0], fromHome)
	require.ErrorIs(t, err, service.ErrConflict)

	revoked, err := f.invites.RevokeInvite(ctx, admin, invites[1].ID, fromHome)
	require.NoError(t, err)
	require.True(t, revoked)
	before, err := f.store.Invites().GetInviteByID(ctx, invites[1].ID)
	require.NoError(t, err)

	_, err = f.invites.ValidateByCode(ctx, guest.ID, raws[1], fromHome)
	require.ErrorIs(t, err, service.ErrConflict)

	after, err := f.store.Invites().GetInviteByID(ctx, invites[1].ID)
	require.NoError(t, err)
	require.Equal(t, before, after, "validation mutates nothing")
}
