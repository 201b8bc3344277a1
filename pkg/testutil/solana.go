package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, p, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return p
}

func GenerateSolanaKeypairs(t *testing.T, n int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, n)
	for i := 0; i < n; i++ {
		keys[i] = GenerateSolanaKeypair(t)
	}
	return keys
}

func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		p, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = p
	}
	return keys
}

// DeterministicKey returns a public key derived from seed, for tests that
// need stable key ordering across runs.
func DeterministicKey(seed string) ed25519.PublicKey {
	h := sha256.Sum256([]byte(seed))
	return h[:]
}
