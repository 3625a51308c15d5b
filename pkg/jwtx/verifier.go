package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrNoSubject   = errors.New("jwtx: missing subject")
)

// Verifier checks a session JWT's signature and claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// VerifyOptions are the claim expectations of a verifier. Zero values are
// not enforced; at least one Audience entry must match when any are given.
type VerifyOptions struct {
	Issuer   string
	Audience []string
	Leeway   time.Duration    // clock skew allowed on exp and nbf
	Now      func() time.Time // defaults to time.Now
}

// EdDSAVerifier trusts exactly one Ed25519 public key.
type EdDSAVerifier struct {
	key  ed25519.PublicKey
	opts VerifyOptions
}

func NewVerifierEdDSA(key ed25519.PublicKey, opts VerifyOptions) *EdDSAVerifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &EdDSAVerifier{key: key, opts: opts}
}

func (v *EdDSAVerifier) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if err := claims.check(v.opts, v.opts.Now().UTC()); err != nil {
		return nil, err
	}
	return claims, nil
}
