package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

type MFAHandler struct {
	TOTPService     *service.TOTPService
	AuthCodeService *service.AuthCodeService
	Reporter        ErrorReporter
}

// HandleEnroll godoc
//
//	@Summary		Enroll TOTP Device
//	@Description	Generate a TOTP secret for the caller. The device is inactive until confirmed with a code.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.TOTPEnrollRequest	false	"Account label"
//	@Success		200		{object}	tokensdk.TOTPEnrollResponse	"secret, otpauth_url"
//	@Failure		401		{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Failure		409		{object}	tokensdk.ErrorResponse		"TOTP already enabled"
//	@Security		BearerAuth
//	@Router			/v1/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	// The body is optional.
	var req tokensdk.TOTPEnrollRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	account := req.Account
	if account == "" {
		account = caller.ID
	}

	enr, err := h.TOTPService.Enroll(ctx, caller, account)
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.TOTPEnrollResponse{Secret: enr.Secret, OTPAuthURL: enr.URL})
}

// HandleConfirm godoc
//
//	@Summary		Confirm TOTP Device
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	tokensdk.CodeRequest	true	"Current TOTP code"
//	@Success		204
//	@Failure		400	{object}	tokensdk.ErrorResponse	"Wrong code"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"No pending device"
//	@Security		BearerAuth
//	@Router			/v1/totp/confirm [post].
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, h.TOTPService.Confirm)
}

// HandleRemove godoc
//
//	@Summary		Remove TOTP Device
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	tokensdk.CodeRequest	true	"Current TOTP code"
//	@Success		204
//	@Failure		400	{object}	tokensdk.ErrorResponse	"Wrong code"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"No device"
//	@Security		BearerAuth
//	@Router			/v1/totp [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, h.TOTPService.Remove)
}

// HandleIssueCode godoc
//
//	@Summary		Request Authentication Code
//	@Description	Send a six digit one-time code to the caller out of band. Any older code is superseded.
//	@Tags			MFA
//	@Produce		json
//	@Success		201	{object}	tokensdk.AuthCodeResponse	"id, expires_at"
//	@Failure		401	{object}	tokensdk.ErrorResponse		"Missing or invalid credential"
//	@Security		BearerAuth
//	@Router			/v1/auth-codes [post].
func (h *MFAHandler) HandleIssueCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	ac, err := h.AuthCodeService.Issue(ctx, caller)
	if err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokensdk.AuthCodeResponse{ID: ac.ID, ExpiresAt: ac.ExpiresAt})
}

// HandleVerifyCode godoc
//
//	@Summary		Verify Authentication Code
//	@Description	Check the caller's newest code. Wrong guesses count towards a ceiling after which the code is dead.
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	tokensdk.CodeRequest	true	"Code"
//	@Success		204
//	@Failure		400	{object}	tokensdk.ErrorResponse	"Wrong code"
//	@Failure		404	{object}	tokensdk.ErrorResponse	"No code issued"
//	@Failure		409	{object}	tokensdk.ErrorResponse	"Code expired or locked"
//	@Security		BearerAuth
//	@Router			/v1/auth-codes/verify [post].
func (h *MFAHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, h.AuthCodeService.Verify)
}

func (h *MFAHandler) withCode(w http.ResponseWriter, r *http.Request, check func(ctx context.Context, principalID, code string) error) {
	ctx := r.Context()
	caller, _ := PrincipalFrom(ctx)

	var req tokensdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	if err := check(ctx, caller.ID, req.Code); err != nil {
		writeServiceError(w, r, h.Reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
