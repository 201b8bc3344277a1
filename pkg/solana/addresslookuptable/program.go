package address_lookup_table

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/solana/binary"
	"github.com/code-payments/solana-sdk-go/pkg/solana/system"
)

// Reference: https://github.com/solana-program/address-lookup-table/blob/main/program/src/instruction.rs

// AddressLookupTab1e1111111111111111111111111
var ProgramKey = ed25519.PublicKey{2, 119, 166, 175, 151, 51, 155, 122, 200, 141, 24, 146, 201, 4, 70, 245, 0, 2, 48, 146, 102, 246, 46, 83, 193, 24, 36, 73, 130, 0, 0, 0}

const (
	commandCreateLookupTable uint32 = iota
	commandFreezeLookupTable
	commandExtendLookupTable
	commandDeactivateLookupTable
	commandCloseLookupTable
)

// Create returns an instruction creating the table at alt, which must be the
// address derived by GetAddress for authority and recentSlot.
func Create(alt, authority, payer ed25519.PublicKey, recentSlot uint64, bumpSeed uint8) solana.Instruction {
	e := binary.NewEncoder(4 + 8 + 1)
	e.PutUint32(commandCreateLookupTable)
	e.PutUint64(recentSlot)
	e.PutUint8(bumpSeed)

	return solana.NewInstruction(
		ProgramKey,
		e.Bytes(),
		solana.NewAccountMeta(alt, false),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	)
}

// Freeze returns an instruction that permanently removes the authority of
// the table, preventing further changes.
func Freeze(alt, authority ed25519.PublicKey) solana.Instruction {
	return authorityInstruction(commandFreezeLookupTable, alt, authority)
}

// Extend returns an instruction appending addresses to the table.
func Extend(alt, authority, payer ed25519.PublicKey, addresses ...ed25519.PublicKey) solana.Instruction {
	e := binary.NewEncoder(4 + 8 + len(addresses)*ed25519.PublicKeySize)
	e.PutUint32(commandExtendLookupTable)
	e.PutUint64(uint64(len(addresses)))
	for _, address := range addresses {
		e.PutKey32(address)
	}

	return solana.NewInstruction(
		ProgramKey,
		e.Bytes(),
		solana.NewAccountMeta(alt, false),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	)
}

// Deactivate returns an instruction starting the cool down period after
// which the table can be closed.
func Deactivate(alt, authority ed25519.PublicKey) solana.Instruction {
	return authorityInstruction(commandDeactivateLookupTable, alt, authority)
}

// Close returns an instruction closing a deactivated table and sending its
// lamports to recipient.
func Close(alt, authority, recipient ed25519.PublicKey) solana.Instruction {
	e := binary.NewEncoder(4)
	e.PutUint32(commandCloseLookupTable)

	return solana.NewInstruction(
		ProgramKey,
		e.Bytes(),
		solana.NewAccountMeta(alt, false),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewAccountMeta(recipient, false),
	)
}

func authorityInstruction(command uint32, alt, authority ed25519.PublicKey) solana.Instruction {
	e := binary.NewEncoder(4)
	e.PutUint32(command)

	return solana.NewInstruction(
		ProgramKey,
		e.Bytes(),
		solana.NewAccountMeta(alt, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledExtend struct {
	Table     ed25519.PublicKey
	Authority ed25519.PublicKey
	Payer     ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

// DecompileExtend parses an instruction created by Extend.
func DecompileExtend(ix solana.Instruction) (*DecompiledExtend, error) {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	d := binary.NewDecoder(ix.Data)
	if d.GetUint32() != commandExtendLookupTable || d.Err() != nil {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	count := d.GetUint64()
	if d.Err() != nil || uint64(d.Remaining()) != count*ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	v := &DecompiledExtend{
		Table:     ix.Accounts[0].PublicKey,
		Authority: ix.Accounts[1].PublicKey,
		Payer:     ix.Accounts[2].PublicKey,
		Addresses: make([]ed25519.PublicKey, count),
	}
	for i := range v.Addresses {
		v.Addresses[i] = d.GetKey32()
	}
	return v, d.Err()
}
