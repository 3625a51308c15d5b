// Package service holds the credential lifecycle: invite issuance and
// redemption, API token authentication, revocation and rotation, second
// factors and housekeeping.
package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/pkg/idx"
)

// RequestInfo describes where a call came from. IP is the resolved client
// address; Fingerprint is the X-Device-Fingerprint header, if any.
type RequestInfo struct {
	IP          string
	UserAgent   string
	Fingerprint string
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// now is truncated to the millisecond precision the store keeps.
func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return c().UTC().Truncate(time.Millisecond)
}

// dayStart is local midnight of now in loc; daily quotas count from here.
func dayStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func usage(kind domain.TokenKind, tokenID, principalID string, action domain.UsageAction, info RequestInfo, at time.Time) domain.UsageEntry {
	return domain.UsageEntry{
		ID:          idx.NewAt(at).String(),
		Kind:        kind,
		TokenID:     tokenID,
		PrincipalID: principalID,
		Action:      action,
		IP:          info.IP,
		UserAgent:   truncate(info.UserAgent, 512),
		CreatedAt:   at,
	}
}

// truncate makes s valid UTF-8 and cuts it to at most n bytes on a rune
// boundary. Postgres TEXT rejects anything else.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
