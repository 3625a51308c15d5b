package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

type APITokenHandler struct {
	APITokenService *service.APITokenService
	ClientIP        httpx.ClientIP
	Reporter        ErrorReporter
}

// HandleIssue godoc
//
//	@Summary		Issue API Token
//	@Description	Mint a bearer token for the caller. The raw token is returned once; only its SHA-256 digest is stored.
//	@Description	Admin scope requires a superuser.
//	@Tags			API Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.APITokenRequest	true	"Token request"
//	@Success		201		{object}	tokensdk.APITokenResponse	"Token including the raw value"
//	@Failure		400		{object}	tokensdk.ErrorResponse		"Invalid client name, scope or expiry"
//	@Failure		401		{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Failure		403		{object}	tokensdk.ErrorResponse		"Scope not allowed"
//	@Failure		429		{object}	tokensdk.ErrorResponse		"Daily quota exceeded"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens [post].
func (h *APITokenHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	var req tokensdk.APITokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	ttl, ok := expiresIn(req.ExpiresIn)
	if !ok {
		writeBadRequest(w, "expires_in out of range")
		return
	}

	tok, raw, err := h.APITokenService.IssueAPIToken(ctx, caller, service.IssueAPITokenRequest{
		ClientName:  req.ClientName,
		Scope:       domain.Scope(req.Scope),
		TTL:         ttl,
		Fingerprint: req.DeviceFingerprint,
	}, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, apiTokenResponse(tok, raw))
}

// HandleList godoc
//
//	@Summary		List API Tokens
//	@Description	List the caller's tokens, including revoked and expired ones that have not been cleaned up yet.
//	@Tags			API Tokens
//	@Produce		json
//	@Success		200	{object}	tokensdk.ListAPITokensResponse	"tokens"
//	@Failure		401	{object}	tokensdk.ErrorResponse			"Missing or invalid credential"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens [get].
func (h *APITokenHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	toks, err := h.APITokenService.ListAPITokens(ctx, caller)
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	resp := tokensdk.ListAPITokensResponse{Tokens: make([]tokensdk.APITokenResponse, len(toks))}
	for i, t := range toks {
		resp.Tokens[i] = apiTokenResponse(t, "")
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke godoc
//
//	@Summary		Revoke API Token
//	@Description	Revoke a token. Owners and superusers only. Revoking twice reports revoked=false.
//	@Tags			API Tokens
//	@Produce		json
//	@Param			id	path		string					true	"Token ID"
//	@Success		200	{object}	tokensdk.RevokeResponse	"id, revoked"
//	@Failure		401	{object}	tokensdk.ErrorResponse	"Missing or invalid credential"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"Unknown token"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens/{id} [delete].
func (h *APITokenHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)
	id := r.PathValue("id")

	revoked, err := h.APITokenService.RevokeAPIToken(ctx, caller, id, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.RevokeResponse{ID: id, Revoked: revoked})
}

// HandleRotate godoc
//
//	@Summary		Rotate API Token
//	@Description	Revoke a live token and mint its successor in one step. The successor keeps the scope, expiry, fingerprint and IP rules.
//	@Tags			API Tokens
//	@Produce		json
//	@Param			id	path		string						true	"Token ID"
//	@Success		201	{object}	tokensdk.APITokenResponse	"Successor including the raw value"
//	@Failure		401	{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Failure		404	{object}	tokensdk.ErrorResponse		"Unknown token"
//	@Failure		409	{object}	tokensdk.ErrorResponse		"Token already revoked or expired"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens/{id}/rotate [post].
func (h *APITokenHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	tok, raw, err := h.APITokenService.RotateAPIToken(ctx, caller, r.PathValue("id"), requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, apiTokenResponse(tok, raw))
}

// HandleListIPs godoc
//
//	@Summary		List IP Rules
//	@Tags			API Tokens
//	@Produce		json
//	@Param			id	path		string						true	"Token ID"
//	@Success		200	{object}	tokensdk.ListIPRulesResponse	"rules"
//	@Failure		401	{object}	tokensdk.ErrorResponse			"Missing or invalid credential"
//	@Failure		404	{object}	tokensdk.ErrorResponse			"Unknown token"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens/{id}/ips [get].
func (h *APITokenHandler) HandleListIPs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	rules, err := h.APITokenService.ListIPRules(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	resp := tokensdk.ListIPRulesResponse{Rules: make([]tokensdk.IPRuleResponse, len(rules))}
	for i, rule := range rules {
		resp.Rules[i] = ipRuleResponse(rule)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleAddIP godoc
//
//	@Summary		Add IP Rule
//	@Description	Restrict where a token may be used from. Deny rules always win; a single allow rule turns the token into allow-list only.
//	@Tags			API Tokens
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Token ID"
//	@Param			request	body		tokensdk.IPRuleRequest	true	"Address or CIDR and kind"
//	@Success		201		{object}	tokensdk.IPRuleResponse	"Created rule"
//	@Failure		400		{object}	tokensdk.ErrorResponse	"Invalid address or kind"
//	@Failure		401		{object}	tokensdk.ErrorResponse	"Missing or invalid credential"
//	@Failure		404		{object}	tokensdk.ErrorResponse	"Unknown token"
//	@Failure		409		{object}	tokensdk.ErrorResponse	"Address already has a rule"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens/{id}/ips [post].
func (h *APITokenHandler) HandleAddIP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	var req tokensdk.IPRuleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rule, err := h.APITokenService.AddIPRule(ctx, caller, r.PathValue("id"), req.IP, domain.IPRuleKind(req.Kind))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ipRuleResponse(rule))
}

// HandleDeleteIP godoc
//
//	@Summary		Delete IP Rule
//	@Tags			API Tokens
//	@Param			id		path	string	true	"Token ID"
//	@Param			rule_id	path	string	true	"Rule ID"
//	@Success		204
//	@Failure		401	{object}	tokensdk.ErrorResponse	"Missing or invalid credential"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"Unknown token or rule"
//	@Security		BearerAuth
//	@Router			/v1/api-tokens/{id}/ips/{rule_id} [delete].
func (h *APITokenHandler) HandleDeleteIP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	if err := h.APITokenService.DeleteIPRule(ctx, caller, r.PathValue("id"), r.PathValue("rule_id")); err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
