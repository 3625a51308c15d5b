package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const pepperLength = 32

// Pepper is a server-side secret mixed into deterministic digests: the invite
// code lookup key and hashed client IPs. It never leaves the host.
type Pepper []byte

// LoadOrCreatePepper reads the pepper from file, generating and persisting a
// new one when the file does not exist yet.
func LoadOrCreatePepper(file string) (Pepper, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		return decodePepper(data)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	buf := make([]byte, pepperLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	encoded := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(file, []byte(encoded), 0600); err != nil {
		return nil, err
	}

	return Pepper(buf), nil
}

func decodePepper(data []byte) (Pepper, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("cryptox: pepper file is not base64url: %w", err)
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("cryptox: pepper too short (%d bytes)", len(raw))
	}
	return Pepper(raw), nil
}

// Lookup derives the indexed lookup key for a raw code.
func (p Pepper) Lookup(raw string) string {
	return p.mac("lookup", raw)
}

// HashIP pseudonymises a client IP for audit records.
func (p Pepper) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	return p.mac("ip", ip)
}

func (p Pepper) mac(domain, value string) string {
	m := hmac.New(sha256.New, p)
	m.Write([]byte(domain))
	m.Write([]byte{0})
	m.Write([]byte(value))
	return hex.EncodeToString(m.Sum(nil))
}
