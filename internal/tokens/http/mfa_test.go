package http_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, guest)

	enr, err := c.EnrollTOTP(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	require.Contains(t, enr.OTPAuthURL, "otpauth://totp/")

	err = c.ConfirmTOTP(ctx, "000000x")
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidCode)

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.ConfirmTOTP(ctx, code))

	_, err = c.EnrollTOTP(ctx, "guest@example.com")
	requireAPIError(t, err, http.StatusConflict, tokensdk.ErrorCodeConflict)

	require.NoError(t, c.RemoveTOTP(ctx, code))
	err = c.RemoveTOTP(ctx, code)
	requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)
}

func TestAuthCodeEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t, guest)

	err := c.VerifyAuthCode(ctx, "123456")
	requireAPIError(t, err, http.StatusNotFound, tokensdk.ErrorCodeNotFound)

	ac, err := c.RequestAuthCode(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ac.ID)
	require.True(t, ac.ExpiresAt.After(time.Now()))

	code := s.sender.Code(guest.ID)
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = c.VerifyAuthCode(ctx, wrong)
	requireAPIError(t, err, http.StatusBadRequest, tokensdk.ErrorCodeInvalidCode)

	require.NoError(t, c.VerifyAuthCode(ctx, code))
}
