package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/solana/binary"
)

type NonceVersion uint32

const (
	NonceAccountSize = 80
)

const (
	NonceVersion0 NonceVersion = iota
	NonceVersion1
)

type NonceState uint32

const (
	NonceStateUninitialized NonceState = iota
	NonceStateInitialized
)

var (
	ErrInvalidAccountSize    = errors.New("invalid nonce account size")
	ErrInvalidAccountVersion = errors.New("invalid nonce account version")
	ErrInvalidAccountOwner   = errors.New("nonce account not owned by the system program")
	ErrNonceNotInitialized   = errors.New("nonce account is not initialized")
)

// https://github.com/solana-labs/solana/blob/da00b39f4f92fb16417bd2d8bd218a04a34527b8/sdk/program/src/nonce/state/current.rs#L8
type NonceAccount struct {
	Version       uint32
	State         uint32
	Authority     ed25519.PublicKey
	Blockhash     solana.Blockhash
	FeeCalculator FeeCalculator
}

type FeeCalculator struct {
	LamportsPerSignature uint64
}

func (obj NonceAccount) Marshal() []byte {
	e := binary.NewEncoder(NonceAccountSize)
	e.PutUint32(obj.Version)
	e.PutUint32(obj.State)
	e.PutKey32(obj.Authority)
	e.PutKey32(obj.Blockhash[:])
	e.PutUint64(obj.FeeCalculator.LamportsPerSignature)
	return e.Bytes()
}

func (obj *NonceAccount) Unmarshal(data []byte) error {
	if len(data) != NonceAccountSize {
		return ErrInvalidAccountSize
	}

	d := binary.NewDecoder(data)
	obj.Version = d.GetUint32()
	obj.State = d.GetUint32()
	obj.Authority = d.GetKey32()
	copy(obj.Blockhash[:], d.GetKey32())
	obj.FeeCalculator.LamportsPerSignature = d.GetUint64()
	if err := d.Err(); err != nil {
		return err
	}

	if NonceVersion(obj.Version) != NonceVersion1 {
		return ErrInvalidAccountVersion
	}

	return nil
}

// GetNonceValueFromAccount returns the nonce value of a nonce account.
//
// Layout references:
// https://github.com/solana-labs/solana/blob/d7b9aca87b0327266cde4f0116113a4203642130/web3.js/src/nonce-account.js#L16-L22
// https://github.com/solana-labs/solana/blob/a4956844bdd081e7b90508066c579f29be306ce7/sdk/program/src/nonce/state/current.rs#L26
func GetNonceValueFromAccount(info solana.AccountInfo) (solana.Blockhash, error) {
	if !bytes.Equal(info.Owner, ProgramKey[:]) {
		return solana.Blockhash{}, ErrInvalidAccountOwner
	}

	var account NonceAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return solana.Blockhash{}, err
	}
	if NonceState(account.State) != NonceStateInitialized {
		return solana.Blockhash{}, ErrNonceNotInitialized
	}

	return account.Blockhash, nil
}

// AccountGetter is the subset of solana.Client needed to read nonce accounts.
type AccountGetter interface {
	GetAccountInfo(ed25519.PublicKey, solana.Commitment) (solana.AccountInfo, error)
}

// GetNonce fetches the current value of the nonce account at nonce.
func GetNonce(client AccountGetter, nonce ed25519.PublicKey, commitment solana.Commitment) (solana.Blockhash, error) {
	info, err := client.GetAccountInfo(nonce, commitment)
	if err != nil {
		return solana.Blockhash{}, errors.Wrap(err, "failed to get nonce account")
	}
	return GetNonceValueFromAccount(info)
}
