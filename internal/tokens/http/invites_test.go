package http_test

import (
	"context"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
	"github.com/stretchr/testify/require"
)

func TestInviteLifecycle(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	adminC, guestC, newbieC := s.client(t, admin), s.client(t, guest), s.client(t, newbie)

	inv, err := adminC.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
	require.NoError(t, err)
	require.NotEmpty(t, inv.Code)
	require.Equal(t, "new", inv.State)
	require.Equal(t, admin.ID, inv.IssuerID)
	require.Equal(t, "org-1", inv.OrganizationID)

	t.Run("validate does not consume", func(t *testing.T) {
		got, err := guestC.ValidateInvite(ctx, inv.Code)
		require.NoError(t, err)
		require.Equal(t, inv.ID, got.ID)
		require.Equal(t, "new", got.State)
		require.Empty(t, got.Code)

		// Anonymous callers may validate too.
		_, err = tokensdk.NewClient(s.srv.URL, "").ValidateInvite(ctx, inv.Code)
		require.NoError(t, err)
	})

	t.Run("code must match the invite in the path", func(t *testing.T) {
		other, err := adminC.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
		require.NoError(t, err)

		_, err = newbieC.UseInvite(ctx, other.ID, inv.Code)
		requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)
	})

	t.Run("redeem once", func(t *testing.T) {
		used, err := newbieC.UseInvite(ctx, inv.ID, inv.Code)
		require.NoError(t, err)
		require.Equal(t, "used", used.State)
		require.Equal(t, newbie.ID, used.UsedBy)

		_, err = guestC.UseInvite(ctx, inv.ID, inv.Code)
		apiErr := requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)
		require.Contains(t, apiErr.Description, "used")

		_, err = guestC.ValidateInvite(ctx, inv.Code)
		requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)
	})

	t.Run("revoke", func(t *testing.T) {
		_, err := guestC.RevokeInvite(ctx, inv.ID)
		requireAPIError(t, err, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied)

		_, err = adminC.RevokeInvite(ctx, inv.ID)
		requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)

		fresh, err := adminC.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
		require.NoError(t, err)
		res, err := adminC.RevokeInvite(ctx, fresh.ID)
		require.NoError(t, err)
		require.True(t, res.Revoked)
		res, err = adminC.RevokeInvite(ctx, fresh.ID)
		require.NoError(t, err)
		require.False(t, res.Revoked)
	})

	t.Run("logs", func(t *testing.T) {
		_, err := guestC.InviteLogs(ctx, inv.ID)
		requireAPIError(t, err, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied)

		logs, err := adminC.InviteLogs(ctx, inv.ID)
		require.NoError(t, err)

		var actions []string
		for _, l := range logs {
			actions = append(actions, l.Action)
			require.Equal(t, inv.ID, l.TokenID)
		}
		require.Equal(t, "issue", actions[0])
		require.Contains(t, actions, "validate")
		require.Contains(t, actions, "use")
	})

	require.Equal(t, 1, countEvents(s, "invite.used"))
}

func TestIssueInviteErrors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.client(t, guest).IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
	requireAPIError(t, err, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied)

	_, err = s.client(t, admin).IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "emperor"})
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

	for _, secs := range []int64{-1, math.MaxInt64, math.MaxInt64/int64(time.Second) + 1} {
		_, err = s.client(t, admin).IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest", ExpiresIn: secs})
		requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)
	}

	// Unknown fields are rejected rather than silently ignored.
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/invites", strings.NewReader(`{"target_role":"guest","reusable":true}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.session(t, admin))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/invites/validate", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInviteDailyQuota(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, admin)

	for range 5 {
		_, err := c.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
		require.NoError(t, err)
	}
	_, err := c.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "guest"})
	requireAPIError(t, err, http.StatusTooManyRequests, tokensdk.ErrorCodeQuotaExceeded)
}

func countEvents(s *server, event string) int {
	n := 0
	for _, e := range s.notifier.Events() {
		if e == event {
			n++
		}
	}
	return n
}
