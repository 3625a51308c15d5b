package domain

import "time"

// TOTPDevice is a principal's authenticator app registration. SecretSealed is
// the AES-GCM sealed base32 seed.
type TOTPDevice struct {
	ID           string
	PrincipalID  string
	SecretSealed string
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

// TOTPEnrollment is returned once at enrollment so the user can configure
// their authenticator.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

// AuthCode is a short numeric one-time code sent out of band.
type AuthCode struct {
	ID          string
	PrincipalID string
	CodeHash    string
	CodeSalt    string
	HashScheme  string
	Attempts    int
	ExpiresAt   time.Time
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}
