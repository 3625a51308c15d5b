package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Sealer encrypts small secrets at rest (TOTP seeds) with AES-256-GCM.
// Output format is [nonce][ciphertext][tag], base64 encoded.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32 byte AES key from arbitrary key material.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("cryptox: empty master key")
	}
	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// LoadSealer reads key material from path. An empty path yields a sealer with
// a random key, which means sealed values do not survive a restart; only
// suitable for development.
func LoadSealer(path string) (s *Sealer, ephemeral bool, err error) {
	if path == "" {
		material := make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
		s, err = NewSealer(material)
		return s, true, err
	}

	material, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read master key file: %w", err)
	}
	s, err = NewSealer(material)
	return s, false, err
}

// Seal encrypts plaintext with a random nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
