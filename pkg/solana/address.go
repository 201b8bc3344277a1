package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	programDerivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidProgramAddress = errors.New("program address lies on the ed25519 curve")
	ErrNoViableBumpSeed      = errors.New("no viable bump seed")
)

var programHashCtor = sha256.New

// CreateProgramAddress derives the address of program for seeds.
//
// Program addresses must not lie on the ed25519 curve, so that no private key
// exists for them. ErrInvalidProgramAddress is returned when the derived hash
// decodes to a curve point.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := programHashCtor()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
		h.Write(s)
	}
	h.Write(program)
	h.Write([]byte(programDerivedAddressMarker))

	var pub [ed25519.PublicKeySize]byte
	copy(pub[:], h.Sum(nil))

	// x/crypto keeps its point decoding internal, so the curve check goes
	// through the extended group element of jdgcs/ed25519.
	var point edwards25519.ExtendedGroupElement
	if point.FromBytes(&pub) {
		return nil, ErrInvalidProgramAddress
	}

	return pub[:], nil
}

// FindProgramAddressAndBump searches bump seeds from 255 downwards and
// returns the first off-curve address along with its bump seed.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := append(append(make([][]byte, 0, len(seeds)+1), seeds...), nil)

	for bump := math.MaxUint8; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		pub, err := CreateProgramAddress(program, withBump...)
		if err == nil {
			return pub, uint8(bump), nil
		}
		if err != ErrInvalidProgramAddress {
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoViableBumpSeed
}

// FindProgramAddress is FindProgramAddressAndBump without the bump seed.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}
