package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrUnknownSigner = errors.New("no key for signer")

// Signer produces signatures over message bytes on behalf of a public key.
type Signer interface {
	Sign(message []byte, pub ed25519.PublicKey) (Signature, error)
}

// Keyring is a Signer backed by in-memory private keys. It is safe for
// concurrent use once constructed.
type Keyring struct {
	keys map[string]ed25519.PrivateKey
}

func NewKeyring(keys ...ed25519.PrivateKey) *Keyring {
	k := &Keyring{
		keys: make(map[string]ed25519.PrivateKey, len(keys)),
	}
	for _, key := range keys {
		k.keys[string(key.Public().(ed25519.PublicKey))] = key
	}
	return k
}

func (k *Keyring) Sign(message []byte, pub ed25519.PublicKey) (sig Signature, err error) {
	key, ok := k.keys[string(pub)]
	if !ok {
		return sig, errors.Wrap(ErrUnknownSigner, base58.Encode(pub))
	}

	copy(sig[:], ed25519.Sign(key, message))
	return sig, nil
}

func publicKeysOf(keys []ed25519.PrivateKey) []ed25519.PublicKey {
	pubs := make([]ed25519.PublicKey, len(keys))
	for i, key := range keys {
		pubs[i] = key.Public().(ed25519.PublicKey)
	}
	return pubs
}
