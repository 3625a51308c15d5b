package slogx

import (
	"log/slog"
	"strings"
)

const redacted = "***REDACTED***"

// Attribute keys whose values are secrets regardless of shape.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"code":          {},
	"password":      {},
	"raw_code":      {},
	"raw_token":     {},
	"secret":        {},
	"signature":     {},
	"token":         {},
	"totp_secret":   {},
}

// Value prefixes of raw credentials. Matching values are masked even when
// logged under an innocuous key.
var secretPrefixes = []string{
	"hxt_",
	"Bearer ",
}

// Redact is a slog ReplaceAttr hook that masks secret-bearing attributes.
func Redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}

	v := a.Value.String()
	if v == "" {
		return a
	}

	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}

	for _, p := range secretPrefixes {
		if strings.HasPrefix(v, p) {
			return slog.String(a.Key, mask(v, p))
		}
	}

	return a
}

// mask keeps the prefix and a short hint of the tail.
func mask(v, prefix string) string {
	body := v[len(prefix):]
	if len(body) <= 8 {
		return prefix + "***"
	}
	return prefix + "..." + body[len(body)-4:]
}
