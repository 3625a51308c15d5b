package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// APITokenPrefix is prepended to every raw API token. It makes leaked tokens
// easy to grep for and lets the log redactor recognise them.
const APITokenPrefix = "hxt_"

// bearerEntropy is the random part of an API token: 32 bytes, 43 base64url
// characters.
const bearerEntropy = 32

func randomURLString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IssueBearerToken returns a fresh API token together with the digest that
// gets persisted. The raw value is handed to the caller exactly once.
func IssueBearerToken() (raw string, digest string, err error) {
	body, err := randomURLString(bearerEntropy)
	if err != nil {
		return "", "", err
	}
	raw = APITokenPrefix + body
	return raw, HashBearerToken(raw), nil
}

// HashBearerToken is the unsalted SHA-256 hex digest used to look API tokens
// up. The token's own 256 bits of entropy make a salt unnecessary.
func HashBearerToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIToken reports whether s carries the API token prefix.
func LooksLikeAPIToken(s string) bool {
	return strings.HasPrefix(s, APITokenPrefix)
}

// GenerateNumericCode returns a uniformly random decimal code with exactly
// the given number of digits (leading zeros allowed).
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("digits out of range: %d", digits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
