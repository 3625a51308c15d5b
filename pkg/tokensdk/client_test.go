package tokensdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentials(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokensdk.InviteResponse{ID: "inv-1", State: "new"})
	}))
	defer srv.Close()

	c := tokensdk.NewClient(srv.URL+"/", "hxt_abc")
	c.Fingerprint = "device-1"

	inv, err := c.ValidateInvite(context.Background(), "a b+c")
	require.NoError(t, err)
	require.Equal(t, "inv-1", inv.ID)

	require.Equal(t, "Bearer hxt_abc", got.Header.Get("Authorization"))
	require.Equal(t, "device-1", got.Header.Get("X-Device-Fingerprint"))
	require.Equal(t, "/v1/invites/validate", got.URL.Path)
	require.Equal(t, "a b+c", got.URL.Query().Get("code"))
}

func TestClientParsesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/api-tokens":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(tokensdk.ErrorResponse{
				Error: tokensdk.ErrorCodeRateLimited, ErrorDescription: "slow down",
			})
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>upstream</html>"))
		}
	}))
	defer srv.Close()

	c := tokensdk.NewClient(srv.URL, "")

	_, err := c.ListAPITokens(context.Background())
	var apiErr *tokensdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, tokensdk.ErrorCodeRateLimited, apiErr.Code)
	require.Equal(t, 7*time.Second, apiErr.RetryAfter)

	_, err = c.Health(context.Background())
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, tokensdk.ErrorCodeServerError, apiErr.Code)
}

func TestWithBearerCopies(t *testing.T) {
	c := tokensdk.NewClient("http://localhost", "a")
	d := c.WithBearer("b")
	require.Equal(t, "a", c.Bearer)
	require.Equal(t, "b", d.Bearer)
	require.Same(t, c.HTTPClient, d.HTTPClient)
}
