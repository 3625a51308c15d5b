package tokensdk

import "time"

// ============================================================================
// Invites
// ============================================================================

// InviteRequest issues an invite. OrganizationID defaults to the issuer's
// organization; ExpiresIn (seconds) defaults to the server TTL.
type InviteRequest struct {
	TargetRole     string `json:"target_role"`
	OrganizationID string `json:"organization_id,omitempty"`
	ExpiresIn      int64  `json:"expires_in,omitempty"`
}

// InviteUseRequest redeems an invite. The code must belong to the invite
// named in the path.
type InviteUseRequest struct {
	Code string `json:"code"`
}

// InviteResponse describes an invite. Code is only set on the issue response.
type InviteResponse struct {
	ID             string     `json:"id"`
	Code           string     `json:"code,omitempty"`
	TargetRole     string     `json:"target_role"`
	State          string     `json:"state"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IssuerID       string     `json:"issuer_id"`
	UsedBy         string     `json:"used_by,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	RevokedBy      string     `json:"revoked_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RevokeResponse reports whether the call performed the revocation. A
// repeated revoke is not an error; it reports Revoked=false.
type RevokeResponse struct {
	ID      string `json:"id"`
	Revoked bool   `json:"revoked"`
}

// UsageLogEntry is one row of a credential's usage log.
type UsageLogEntry struct {
	ID          string    `json:"id"`
	TokenID     string    `json:"token_id,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Action      string    `json:"action"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type UsageLogResponse struct {
	Logs []UsageLogEntry `json:"logs"`
}

// ============================================================================
// API tokens
// ============================================================================

// APITokenRequest issues an API token. Scope defaults to "read"; ExpiresIn
// (seconds) of zero never expires.
type APITokenRequest struct {
	ClientName        string `json:"client_name"`
	Scope             string `json:"scope,omitempty"`
	ExpiresIn         int64  `json:"expires_in,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// APITokenResponse describes an API token. Token is only set when the token
// is issued or rotated.
type APITokenResponse struct {
	ID                string     `json:"id"`
	Token             string     `json:"token,omitempty"`
	OwnerID           string     `json:"owner_id"`
	ClientName        string     `json:"client_name"`
	Scope             string     `json:"scope"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	PredecessorID     string     `json:"predecessor_id,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ListAPITokensResponse struct {
	Tokens []APITokenResponse `json:"tokens"`
}

// IPRuleRequest adds an address or CIDR rule. Kind is "allow" or "deny".
type IPRuleRequest struct {
	IP   string `json:"ip"`
	Kind string `json:"kind"`
}

type IPRuleResponse struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	IP        string    `json:"ip"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type ListIPRulesResponse struct {
	Rules []IPRuleResponse `json:"rules"`
}

// ============================================================================
// Second factors
// ============================================================================

// TOTPEnrollRequest optionally names the account label shown in the
// authenticator app.
type TOTPEnrollRequest struct {
	Account string `json:"account,omitempty"`
}

type TOTPEnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// CodeRequest carries a one-time code (TOTP or authentication code).
type CodeRequest struct {
	Code string `json:"code"`
}

type AuthCodeResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
