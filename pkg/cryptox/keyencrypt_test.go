package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("test-master-key-for-encryption-12345"))
	require.NoError(t, err)

	secret := []byte("JBSWY3DPEHPK3PXP")

	sealed1, err := s.Seal(secret)
	require.NoError(t, err)
	sealed2, err := s.Seal(secret)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "random nonce per seal")

	for _, sealed := range []string{sealed1, sealed2} {
		opened, err := s.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, secret, opened)
	}
}

func TestOpen_WrongKeyFails(t *testing.T) {
	a, err := cryptox.NewSealer([]byte("key-a"))
	require.NoError(t, err)
	b, err := cryptox.NewSealer([]byte("key-b"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	require.Error(t, err)

	_, err = a.Open("c2hvcnQ=")
	require.Error(t, err)
}

func TestLoadSealer(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("file-key-material"), 0600))

		s, ephemeral, err := cryptox.LoadSealer(path)
		require.NoError(t, err)
		require.False(t, ephemeral)

		sealed, err := s.Seal([]byte("x"))
		require.NoError(t, err)

		// A second sealer from the same file opens the value.
		s2, _, err := cryptox.LoadSealer(path)
		require.NoError(t, err)
		opened, err := s2.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, []byte("x"), opened)
	})

	t.Run("ephemeral without path", func(t *testing.T) {
		s, ephemeral, err := cryptox.LoadSealer("")
		require.NoError(t, err)
		require.True(t, ephemeral)
		require.NotNil(t, s)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cryptox.LoadSealer(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})
}
