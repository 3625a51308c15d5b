package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session claims minted by the accounts subsystem. Only the
// subject is trusted for identity; role and status are read from the
// principal record, not the token.
type Claims struct {
	jwt.RegisteredClaims

	SID string   `json:"sid,omitempty"`
	AMR []string `json:"amr,omitempty"` // e.g. ["pwd","otp"]
}

// NewSessionClaims issues claims valid from now for ttl with a fresh jti.
func NewSessionClaims(subject, sid, issuer string, audience []string, ttl time.Duration, now time.Time) Claims {
	var c Claims
	c.Subject = subject
	c.Issuer = issuer
	c.Audience = audience
	c.ID = NewJTI()
	c.SID = sid

	issued := jwt.NewNumericDate(now)
	c.IssuedAt, c.NotBefore = issued, issued
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return c
}

// NewJTI returns 160 random bits, base64url without padding.
func NewJTI() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// check applies opts to c at now. Empty expectations are not enforced, and a
// subject is always required.
func (c *Claims) check(opts VerifyOptions, now time.Time) error {
	if opts.Issuer != "" && c.Issuer != opts.Issuer {
		return ErrIssuer
	}
	if len(opts.Audience) > 0 && !slices.ContainsFunc(opts.Audience, func(aud string) bool {
		return slices.Contains(c.Audience, aud)
	}) {
		return ErrAudience
	}

	switch {
	case c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(opts.Leeway)):
		return ErrExpired
	case c.NotBefore != nil && now.Before(c.NotBefore.Add(-opts.Leeway)):
		return ErrNotYetValid
	case c.Subject == "":
		return ErrNoSubject
	}
	return nil
}
