package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	p1, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Len(t, p1, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Reloading returns the persisted pepper.
	p2, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	require.Equal(t, p1.Lookup("code"), p2.Lookup("code"))
}

func TestLoadOrCreatePepper_Rejects(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not base64 !!"), 0600))
	_, err := cryptox.LoadOrCreatePepper(garbage)
	require.Error(t, err)

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("AAAA"), 0600))
	_, err = cryptox.LoadOrCreatePepper(short)
	require.Error(t, err)
}

func TestPepperDigests(t *testing.T) {
	p := cryptox.Pepper([]byte("0123456789abcdef0123456789abcdef"))
	other := cryptox.Pepper([]byte("fedcba9876543210fedcba9876543210"))

	require.Len(t, p.Lookup("abc"), 64)
	require.Equal(t, p.Lookup("abc"), p.Lookup("abc"))
	require.NotEqual(t, p.Lookup("abc"), other.Lookup("abc"))

	// Lookup keys and IP hashes are domain separated.
	require.NotEqual(t, p.Lookup("10.0.0.1"), p.HashIP("10.0.0.1"))
	require.Empty(t, p.HashIP(""))
}
