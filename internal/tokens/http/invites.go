package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

type InviteHandler struct {
	InviteService *service.InviteService
	ClientIP      httpx.ClientIP
	Reporter      ErrorReporter
}

// HandleIssue godoc
//
//	@Summary		Issue Invite
//	@Description	Issue a single-use invite for a target role. The raw code is returned once and never stored.
//	@Description	The issuer's role must be allowed to invite the target role, and issuance is capped per issuer per local day.
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.InviteRequest	true	"Invite request"
//	@Success		201		{object}	tokensdk.InviteResponse	"Invite including the raw code"
//	@Failure		400		{object}	tokensdk.ErrorResponse	"Invalid role or expiry"
//	@Failure		401		{object}	tokensdk.ErrorResponse	"Missing or invalid credential"
//	@Failure		403		{object}	tokensdk.ErrorResponse	"Role may not issue this invite"
//	@Failure		429		{object}	tokensdk.ErrorResponse	"Daily quota exceeded"
//	@Security		BearerAuth
//	@Router			/v1/invites [post].
func (h *InviteHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	var req tokensdk.InviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	ttl, ok := expiresIn(req.ExpiresIn)
	if !ok {
		writeBadRequest(w, "expires_in out of range")
		return
	}

	inv, code, err := h.InviteService.IssueInvite(ctx, caller, service.IssueInviteRequest{
		TargetRole:     domain.Role(req.TargetRole),
		OrganizationID: req.OrganizationID,
		TTL:            ttl,
	}, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, inviteResponse(inv, code))
}

// HandleValidate godoc
//
//	@Summary		Validate Invite Code
//	@Description	Check a raw invite code without consuming it. Every attempt is logged and throttled per code and per caller.
//	@Tags			Invites
//	@Produce		json
//	@Param			code	query		string					true	"Raw invite code"
//	@Success		200		{object}	tokensdk.InviteResponse	"Invite state"
//	@Failure		400		{object}	tokensdk.ErrorResponse	"Missing code"
//	@Failure		404		{object}	tokensdk.ErrorResponse	"Unknown code"
//	@Failure		409		{object}	tokensdk.ErrorResponse	"Invite used, expired or revoked"
//	@Failure		429		{object}	tokensdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/invites/validate [get].
func (h *InviteHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.URL.Query().Get("code")
	if code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	var callerID string
	if caller, ok := PrincipalFrom(ctx); ok {
		callerID = caller.ID
	}

	inv, err := h.InviteService.ValidateByCode(ctx, callerID, code, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, inviteResponse(inv, ""))
}

// HandleUse godoc
//
//	@Summary		Redeem Invite
//	@Description	Redeem an invite. The raw code must belong to the invite in the path; at most one redemption ever succeeds.
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Invite ID"
//	@Param			request	body		tokensdk.InviteUseRequest	true	"Raw invite code"
//	@Success		200		{object}	tokensdk.InviteResponse		"Redeemed invite"
//	@Failure		400		{object}	tokensdk.ErrorResponse		"Missing code"
//	@Failure		401		{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Failure		404		{object}	tokensdk.ErrorResponse		"Unknown invite or code"
//	@Failure		409		{object}	tokensdk.ErrorResponse		"Invite used, expired or revoked"
//	@Failure		429		{object}	tokensdk.ErrorResponse		"Too many attempts"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id}/use [post].
func (h *InviteHandler) HandleUse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	var req tokensdk.InviteUseRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	inv, err := h.InviteService.Redeem(ctx, caller, r.PathValue("id"), req.Code, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, inviteResponse(inv, ""))
}

// HandleRevoke godoc
//
//	@Summary		Revoke Invite
//	@Description	Revoke an unused invite. Revoking twice is not an error; the second call reports revoked=false.
//	@Tags			Invites
//	@Produce		json
//	@Param			id	path		string					true	"Invite ID"
//	@Success		200	{object}	tokensdk.RevokeResponse	"id, revoked"
//	@Failure		401	{object}	tokensdk.ErrorResponse	"Missing or invalid credential"
//	@Failure		403	{object}	tokensdk.ErrorResponse	"Admins only"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"Unknown invite"
//	@Failure		409	{object}	tokensdk.ErrorResponse	"Invite already used or expired"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id}/revoke [post].
func (h *InviteHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)
	id := r.PathValue("id")

	revoked, err := h.InviteService.RevokeInvite(ctx, caller, id, requestInfo(h.ClientIP, r))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.RevokeResponse{ID: id, Revoked: revoked})
}

// HandleLogs godoc
//
//	@Summary		Invite Usage Log
//	@Description	List every issue, validate, use and revoke recorded against an invite, oldest first.
//	@Tags			Invites
//	@Produce		json
//	@Param			id	path		string						true	"Invite ID"
//	@Success		200	{object}	tokensdk.UsageLogResponse	"logs"
//	@Failure		401	{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Failure		403	{object}	tokensdk.ErrorResponse		"Admins only"
//	@Failure		404	{object}	tokensdk.ErrorResponse		"Unknown invite"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id}/logs [get].
func (h *InviteHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	entries, err := h.InviteService.InviteLogs(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	resp := tokensdk.UsageLogResponse{Logs: make([]tokensdk.UsageLogEntry, len(entries))}
	for i, e := range entries {
		resp.Logs[i] = usageLogEntry(e)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
