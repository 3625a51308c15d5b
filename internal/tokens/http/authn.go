package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/jwtx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyScope
)

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(domain.Principal)
	return p, ok
}

// scopeFrom returns the scope granted to the presented credential. Session
// JWTs carry the principal's full authority.
func scopeFrom(ctx context.Context) domain.Scope {
	if s, ok := ctx.Value(ctxKeyScope).(domain.Scope); ok {
		return s
	}
	return domain.ScopeAdmin
}

// Authenticator resolves the Authorization header into a Principal. An
// hxt_ token is checked by the API token service (which logs the use and
// enforces IP rules, fingerprint and rate limits); anything else must be an
// accounts session JWT.
type Authenticator struct {
	Tokens   *service.APITokenService
	Verifier jwtx.Verifier // nil rejects session JWTs
	Store    store.Store
	ClientIP httpx.ClientIP
	Reporter ErrorReporter
}

// Require rejects requests without a valid credential.
func (a *Authenticator) Require() httpx.Middleware {
	return a.middleware(true)
}

// Optional authenticates when a credential is present. A bad credential is
// still rejected; a missing one passes through anonymously.
func (a *Authenticator) Optional() httpx.Middleware {
	return a.middleware(false)
}

func (a *Authenticator) middleware(required bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				if required {
					writeUnauthorized(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			p, scope, err := a.authenticate(ctx, raw, a.requestInfo(r))
			if err != nil {
				writeServiceError(w, r, a.Reporter, err)
				return
			}

			ctx = context.WithValue(ctx, ctxKeyPrincipal, p)
			ctx = context.WithValue(ctx, ctxKeyScope, scope)
			ctx = slogx.With(ctx, slog.String("principal_id", p.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, raw string, info service.RequestInfo) (domain.Principal, domain.Scope, error) {
	if cryptox.LooksLikeAPIToken(raw) {
		p, tok, err := a.Tokens.Authenticate(ctx, raw, info)
		if err != nil {
			return domain.Principal{}, "", err
		}
		return p, tok.Scope, nil
	}

	if a.Verifier == nil {
		return domain.Principal{}, "", service.ErrUnauthorized
	}
	claims, err := a.Verifier.Verify(raw)
	if err != nil {
		slogx.FromContext(ctx).Debug("session token rejected", slog.Any("error", err))
		return domain.Principal{}, "", service.ErrUnauthorized
	}

	// Role and status come from the principal record, never the token.
	p, err := a.Store.Principals().GetPrincipal(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Principal{}, "", service.ErrUnauthorized
	case err != nil:
		return domain.Principal{}, "", err
	case !p.Active:
		return domain.Principal{}, "", service.ErrUnauthorized
	}
	return p, domain.ScopeAdmin, nil
}

func (a *Authenticator) requestInfo(r *http.Request) service.RequestInfo {
	return requestInfo(a.ClientIP, r)
}

// RequireScope rejects API tokens whose scope does not cover want. Scopes
// nest: admin covers write, write covers read.
func RequireScope(want domain.Scope) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !scopeCovers(scopeFrom(r.Context()), want) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+string(want)+`"`)
				httpx.WriteError(w, http.StatusForbidden, tokensdk.ErrorCodeAccessDenied,
					"the credential does not carry the required scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var scopeRank = map[domain.Scope]int{
	domain.ScopeRead:  1,
	domain.ScopeWrite: 2,
	domain.ScopeAdmin: 3,
}

func scopeCovers(have, want domain.Scope) bool {
	return scopeRank[have] >= scopeRank[want]
}

// byPrincipal keys per-caller throttling on the authenticated principal.
func byPrincipal(r *http.Request) string {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		return ""
	}
	return "principal:" + p.ID
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requestInfo(ip httpx.ClientIP, r *http.Request) service.RequestInfo {
	return service.RequestInfo{
		IP:          ip.Resolve(r),
		UserAgent:   r.UserAgent(),
		Fingerprint: r.Header.Get("X-Device-Fingerprint"),
	}
}
