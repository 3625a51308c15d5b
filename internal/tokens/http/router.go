package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/jwtx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/tokens/api/tokens" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	clientIP     httpx.ClientIP
	gatherer     prometheus.Gatherer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	Reporter        ErrorReporter
	InviteService   *service.InviteService
	APITokenService *service.APITokenService
	TOTPService     *service.TOTPService
	AuthCodeService *service.AuthCodeService
}

// NewRouter builds an empty router. A nil verifier disables session JWTs so
// only API tokens authenticate; a nil gatherer serves the default registry.
func NewRouter(
	verifier jwtx.Verifier,
	clientIP httpx.ClientIP,
	gatherer prometheus.Gatherer,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		clientIP:     clientIP,
		gatherer:     gatherer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Reporter:     LogReporter{},
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerInvites()
	r.registerAPITokens()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tokens Service API
//	@version		0.1.0
//	@description	Invite codes, API tokens and second factors for the accounts subsystem.
//	@description
//	@description				Raw invite codes and API tokens are returned exactly once, at issue or rotation.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tokens
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Accounts session JWT or API token (hxt_...). Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authenticator() *Authenticator {
	return &Authenticator{
		Tokens:   r.APITokenService,
		Verifier: r.verifier,
		Store:    r.store,
		ClientIP: r.clientIP,
		Reporter: r.Reporter,
	}
}

// secured authenticates, checks the credential's scope and throttles per
// principal, in that order.
func (r *Router) secured(h http.HandlerFunc, scope domain.Scope, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.RateLimitMiddleware(limit, r.clientIP.KeyExtractor()),
		r.authenticator().Require(),
		RequireScope(scope),
		httpx.RateLimitMiddleware(limit, byPrincipal),
	)
}

func (r *Router) registerInvites() {
	h := &InviteHandler{InviteService: r.InviteService, ClientIP: r.clientIP, Reporter: r.Reporter}

	r.Mux.Handle("POST /v1/invites", r.secured(h.HandleIssue, domain.ScopeWrite, httpx.ModerateLimit))

	// GET /validate - anonymous callers allowed; strict per-IP limit on top of
	// the per-code limiter in the service
	r.Mux.Handle("GET /v1/invites/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitMiddleware(httpx.StrictLimit, r.clientIP.KeyExtractor()),
			r.authenticator().Optional(),
		),
	)

	r.Mux.Handle("POST /v1/invites/{id}/use", r.secured(h.HandleUse, domain.ScopeWrite, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/invites/{id}/revoke", r.secured(h.HandleRevoke, domain.ScopeAdmin, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/invites/{id}/logs", r.secured(h.HandleLogs, domain.ScopeAdmin, httpx.LenientLimit))
}

func (r *Router) registerAPITokens() {
	h := &APITokenHandler{APITokenService: r.APITokenService, ClientIP: r.clientIP, Reporter: r.Reporter}

	r.Mux.Handle("POST /v1/api-tokens", r.secured(h.HandleIssue, domain.ScopeWrite, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/api-tokens", r.secured(h.HandleList, domain.ScopeRead, httpx.LenientLimit))
	r.Mux.Handle("DELETE /v1/api-tokens/{id}", r.secured(h.HandleRevoke, domain.ScopeWrite, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/api-tokens/{id}/rotate", r.secured(h.HandleRotate, domain.ScopeWrite, httpx.ModerateLimit))

	r.Mux.Handle("GET /v1/api-tokens/{id}/ips", r.secured(h.HandleListIPs, domain.ScopeRead, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/api-tokens/{id}/ips", r.secured(h.HandleAddIP, domain.ScopeWrite, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/api-tokens/{id}/ips/{rule_id}", r.secured(h.HandleDeleteIP, domain.ScopeWrite, httpx.ModerateLimit))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{TOTPService: r.TOTPService, AuthCodeService: r.AuthCodeService, Reporter: r.Reporter}

	r.Mux.Handle("POST /v1/totp/enroll", r.secured(h.HandleEnroll, domain.ScopeWrite, httpx.ModerateLimit))

	// Code checks get the strict limit to slow down guessing
	r.Mux.Handle("POST /v1/totp/confirm", r.secured(h.HandleConfirm, domain.ScopeWrite, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/totp", r.secured(h.HandleRemove, domain.ScopeWrite, httpx.StrictLimit))

	r.Mux.Handle("POST /v1/auth-codes", r.secured(h.HandleIssueCode, domain.ScopeWrite, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/auth-codes/verify", r.secured(h.HandleVerifyCode, domain.ScopeWrite, httpx.StrictLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitMiddleware(httpx.LenientLimit, r.clientIP.KeyExtractor()),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitMiddleware(httpx.LenientLimit, r.clientIP.KeyExtractor()),
		),
	)

	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
}
