package http

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

// ErrorReporter receives failures that are not part of the service error
// taxonomy. The caller only ever sees a generic 500.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// LogReporter reports through the request logger.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, err error) {
	slogx.FromContext(ctx).Error("unhandled error", slog.Any("error", err))
}

// writeServiceError maps a service error onto a status code and error body.
// Descriptions are fixed strings so nothing internal leaks to the caller.
func writeServiceError(w http.ResponseWriter, r *http.Request, rep ErrorReporter, err error) {
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		rerr *service.RateLimitedError
	)

	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest, verr.Error())

	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest, "invalid request")

	// A wrong one-time code is a bad request, not a bad bearer credential.
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest, tokensdk.ErrorCodeInvalidCode, "the code is invalid")

	case errors.Is(err, service.ErrQuotaExceeded):
		httpx.WriteError(w, http.StatusTooManyRequests, tokensdk.ErrorCodeQuotaExceeded, "daily issuance quota exceeded")

	case errors.Is(err, service.ErrRateLimited):
		retry := time.Second
		if errors.As(err, &rerr) {
			retry = rerr.RetryAfter
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
		httpx.WriteError(w, http.StatusTooManyRequests, tokensdk.ErrorCodeRateLimited, "too many attempts, try again later")

	case errors.Is(err, service.ErrUnauthorized):
		writeUnauthorized(w)

	case errors.Is(err, service.ErrAuthorization), errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied, "access denied")

	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, tokensdk.ErrorCodeNotFound, "not found")

	case errors.As(err, &cerr):
		httpx.WriteError(w, http.StatusConflict, tokensdk.ErrorCodeConflict, cerr.Error())

	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, tokensdk.ErrorCodeConflict, "credential is not in a usable state")

	default:
		rep.Report(r.Context(), err)
		httpx.WriteError(w, http.StatusInternalServerError, tokensdk.ErrorCodeServerError, "internal server error")
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	httpx.WriteError(w, http.StatusUnauthorized, tokensdk.ErrorCodeInvalidToken,
		"the credential is missing, invalid, expired or revoked")
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, tokensdk.ErrorCodeInvalidRequest, desc)
}

// maxExpiresIn is the largest expires_in that fits a time.Duration.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// expiresIn converts a request's expires_in seconds. Negative values and
// values that would overflow a time.Duration are rejected.
func expiresIn(secs int64) (time.Duration, bool) {
	if secs < 0 || secs > maxExpiresIn {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
