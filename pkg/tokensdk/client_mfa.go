package tokensdk

import (
	"context"
	"net/http"
)

// EnrollTOTP starts (or restarts) TOTP enrollment for the caller. The device
// is inactive until ConfirmTOTP succeeds.
func (c *Client) EnrollTOTP(ctx context.Context, account string) (*TOTPEnrollResponse, error) {
	var out TOTPEnrollResponse
	if err := c.do(ctx, http.MethodPost, "/v1/totp/enroll", TOTPEnrollRequest{Account: account}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmTOTP(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/v1/totp/confirm", CodeRequest{Code: code}, nil, http.StatusNoContent)
}

// RemoveTOTP deletes the caller's device. A current code is required.
func (c *Client) RemoveTOTP(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/v1/totp", CodeRequest{Code: code}, nil, http.StatusNoContent)
}

// RequestAuthCode sends a fresh one-time code to the caller out of band.
func (c *Client) RequestAuthCode(ctx context.Context) (*AuthCodeResponse, error) {
	var out AuthCodeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth-codes", nil, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyAuthCode(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth-codes/verify", CodeRequest{Code: code}, nil, http.StatusNoContent)
}

// Health calls the liveness probe. No credential is needed.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
