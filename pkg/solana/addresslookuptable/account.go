package address_lookup_table

import (
	"crypto/ed25519"
	"fmt"
	"math"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/solana/binary"
)

var (
	ErrInvalidAccountSize = errors.New("invalid address lookup table account size")
	ErrInvalidAccountType = errors.New("invalid account type")
)

const (
	lookupTableDiscriminator = 1

	// MetadataSize is the size of the table header preceding its addresses.
	MetadataSize = 56

	// MaxAddresses is the maximum number of addresses a table can hold.
	MaxAddresses = 256

	optionSize = 1
)

// Reference: https://github.com/solana-program/address-lookup-table/blob/main/program/src/state.rs
type AddressLookupTableAccount struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	Authority                  ed25519.PublicKey
	Addresses                  []ed25519.PublicKey
}

// IsActive reports whether the table has not been deactivated. Deactivated
// tables remain usable until they are closed.
func (obj *AddressLookupTableAccount) IsActive() bool {
	return obj.DeactivationSlot == math.MaxUint64
}

// IsFrozen reports whether the table can no longer be extended.
func (obj *AddressLookupTableAccount) IsFrozen() bool {
	return len(obj.Authority) == 0
}

// ToAddressLookupTable returns the table as used when compiling and
// resolving v0 messages.
func (obj *AddressLookupTableAccount) ToAddressLookupTable(address ed25519.PublicKey) solana.AddressLookupTable {
	return solana.AddressLookupTable{
		PublicKey: address,
		Addresses: obj.Addresses,
	}
}

func (obj *AddressLookupTableAccount) Marshal() []byte {
	e := binary.NewEncoder(MetadataSize + len(obj.Addresses)*ed25519.PublicKeySize)

	e.PutUint32(lookupTableDiscriminator)
	e.PutUint64(obj.DeactivationSlot)
	e.PutUint64(obj.LastExtendedSlot)
	e.PutUint8(obj.LastExtendedSlotStartIndex)
	e.PutOptionalKey32(obj.Authority, optionSize)

	e.Seek(MetadataSize)
	for _, address := range obj.Addresses {
		e.PutKey32(address)
	}

	return e.Bytes()
}

func (obj *AddressLookupTableAccount) Unmarshal(data []byte) error {
	if len(data) < MetadataSize {
		return ErrInvalidAccountSize
	}

	addressBufferSize := len(data) - MetadataSize
	if addressBufferSize%ed25519.PublicKeySize != 0 || addressBufferSize/ed25519.PublicKeySize > MaxAddresses {
		return ErrInvalidAccountSize
	}

	d := binary.NewDecoder(data)
	if d.GetUint32() != lookupTableDiscriminator {
		return ErrInvalidAccountType
	}

	obj.DeactivationSlot = d.GetUint64()
	obj.LastExtendedSlot = d.GetUint64()
	obj.LastExtendedSlotStartIndex = d.GetUint8()
	obj.Authority = d.GetOptionalKey32(optionSize)

	d.Seek(MetadataSize)
	obj.Addresses = make([]ed25519.PublicKey, addressBufferSize/ed25519.PublicKeySize)
	for i := range obj.Addresses {
		obj.Addresses[i] = d.GetKey32()
	}

	return d.Err()
}

func (obj *AddressLookupTableAccount) String() string {
	var addresses strings.Builder
	addresses.WriteString("{")
	for i, address := range obj.Addresses {
		addresses.WriteString(fmt.Sprintf("%d:%s,", i, base58.Encode(address)))
	}
	addresses.WriteString("}")

	return fmt.Sprintf(
		"AddressLookupTable{deactivation_slot=%d,last_extended_slot=%d,last_extended_slot_start_index=%d,authority=%s,addresses=%s}",
		obj.DeactivationSlot,
		obj.LastExtendedSlot,
		obj.LastExtendedSlotStartIndex,
		base58.Encode(obj.Authority),
		addresses.String(),
	)
}
