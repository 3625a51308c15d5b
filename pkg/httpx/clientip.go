package httpx

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, etc.)
type KeyExtractor func(*http.Request) string

// ClientIP resolves the caller address. Forwarding headers are honoured only
// when the service sits behind a proxy that overwrites them; otherwise any
// client could spoof its way past IP rules.
type ClientIP struct {
	TrustProxyHeaders bool
}

// Resolve returns the normalised client IP, or "" when it cannot be parsed.
func (c ClientIP) Resolve(r *http.Request) string {
	if c.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := normalise(first); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := normalise(xri); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalise(host)
}

// KeyExtractor adapts Resolve for the rate limit middleware.
func (c ClientIP) KeyExtractor() KeyExtractor {
	return c.Resolve
}

func normalise(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}
