package http_test

import (
	"context"
	"math"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
	"github.com/stretchr/testify/require"
)

func TestAPITokenLifecycle(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	owner := s.client(t, guest)

	tok, err := owner.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: "backup", ExpiresIn: 3600})
	require.NoError(t, err)
	require.Equal(t, "read", tok.Scope)
	require.NotNil(t, tok.ExpiresAt)
	require.Equal(t, 1, countEvents(s, "created"))

	t.Run("ip rules", func(t *testing.T) {
		_, err := owner.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "not-an-ip", Kind: "allow"})
		requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

		_, err = owner.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "10.0.0.1", Kind: "maybe"})
		requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

		// Only 10.0.0.0/8 may use the token; the test client is loopback.
		rule, err := owner.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "10.0.0.0/8", Kind: "allow"})
		require.NoError(t, err)

		_, err = owner.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "10.0.0.0/8", Kind: "allow"})
		requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)

		rules, err := owner.ListIPRules(ctx, tok.ID)
		require.NoError(t, err)
		require.Len(t, rules, 1)

		_, err = tokensdk.NewClient(s.srv.URL, tok.Token).ListAPITokens(ctx)
		requireAPIError(t, err, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied)

		require.NoError(t, owner.DeleteIPRule(ctx, tok.ID, rule.ID))
		err = owner.DeleteIPRule(ctx, tok.ID, rule.ID)
		requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)

		_, err = tokensdk.NewClient(s.srv.URL, tok.Token).ListAPITokens(ctx)
		require.NoError(t, err)
	})

	t.Run("other principals cannot manage it", func(t *testing.T) {
		intruder := s.client(t, newbie)
		_, err := intruder.RevokeAPIToken(ctx, tok.ID)
		requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)
		_, err = intruder.ListIPRules(ctx, tok.ID)
		requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)
	})

	var next *tokensdk.APITokenResponse
	t.Run("rotate", func(t *testing.T) {
		_, err := owner.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "127.0.0.1", Kind: "allow"})
		require.NoError(t, err)

		next, err = owner.RotateAPIToken(ctx, tok.ID)
		require.NoError(t, err)
		require.NotEqual(t, tok.ID, next.ID)
		require.NotEqual(t, tok.Token, next.Token)
		require.Equal(t, tok.ID, next.PredecessorID)
		require.Equal(t, tok.ExpiresAt.Unix(), next.ExpiresAt.Unix())

		rules, err := owner.ListIPRules(ctx, next.ID)
		require.NoError(t, err)
		require.Len(t, rules, 1, "ip rules follow the successor")

		_, err = tokensdk.NewClient(s.srv.URL, tok.Token).ListAPITokens(ctx)
		requireAPIError(t, err, http.StatusUnauthorized, tokensdk.ErrorCodeInvalidToken)
		_, err = tokensdk.NewClient(s.srv.URL, next.Token).ListAPITokens(ctx)
		require.NoError(t, err)

		_, err = owner.RotateAPIToken(ctx, tok.ID)
		requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		res, err := owner.RevokeAPIToken(ctx, next.ID)
		require.NoError(t, err)
		require.True(t, res.Revoked)

		res, err = owner.RevokeAPIToken(ctx, next.ID)
		require.NoError(t, err)
		require.False(t, res.Revoked)

		_, err = tokensdk.NewClient(s.srv.URL, next.Token).ListAPITokens(ctx)
		requireAPIError(t, err, http.StatusUnauthorized, tokensdk.ErrorCodeInvalidToken)
	})
}

func TestAPITokenFingerprint(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	tok, err := s.client(t, guest).IssueAPIToken(ctx, tokensdk.APITokenRequest{
		ClientName: "laptop", DeviceFingerprint: "fp-1",
	})
	require.NoError(t, err)

	c := tokensdk.NewClient(s.srv.URL, tok.Token)
	_, err = c.ListAPITokens(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, tokensdk.ErrorCodeInvalidToken)

	c.Fingerprint = "fp-1"
	_, err = c.ListAPITokens(ctx)
	require.NoError(t, err)
}

func TestIssueAPITokenErrors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, admin)

	_, err := c.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: ""})
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

	_, err = c.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: "x", Scope: "everything"})
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

	_, err = c.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: "x", ExpiresIn: math.MaxInt64})
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest)

	// Admin scope needs a superuser, not just an admin role.
	_, err = c.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: "x", Scope: "admin"})
	requireAPIError(t, err, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied)
}
