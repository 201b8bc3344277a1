package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// BlockhashProvider supplies recent blockhashes for new transactions.
type BlockhashProvider interface {
	GetLatestBlockhash() (Blockhash, error)
}

// Submitter sends wire transactions to the network.
type Submitter interface {
	SubmitTransaction(raw []byte, commitment Commitment) (Signature, error)
}

// SignableTransaction is implemented by *Transaction and
// *VersionedTransaction.
type SignableTransaction interface {
	SetBlockhash(Blockhash)
	HasDurableNonce() bool
	SignWith(signer Signer, pubs ...ed25519.PublicKey) error
	Marshal() ([]byte, error)
}

// BuildAndSign sets a recent blockhash on txn, unless it uses a durable
// nonce, signs it for every required signer, and returns its wire format.
func BuildAndSign(provider BlockhashProvider, txn SignableTransaction, signer Signer) ([]byte, error) {
	if !txn.HasDurableNonce() {
		bh, err := provider.GetLatestBlockhash()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get recent blockhash")
		}
		txn.SetBlockhash(bh)
	}

	if err := txn.SignWith(signer); err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	return txn.Marshal()
}

// Send builds and signs txn with BuildAndSign and submits it through client.
func Send(client Client, txn SignableTransaction, signer Signer, commitment Commitment) (Signature, error) {
	raw, err := BuildAndSign(client, txn, signer)
	if err != nil {
		return Signature{}, err
	}

	return client.SubmitTransaction(raw, commitment)
}
