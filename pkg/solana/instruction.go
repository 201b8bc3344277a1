package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta represents the account information required
// for building transactions.
//
// An AccountMeta is treated as a value: combining two references to the
// same account produces a new AccountMeta via Merge.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// Merge combines the privileges of two references to the same account. The
// most privileged request wins for both the signer and writable flags.
func (m AccountMeta) Merge(other AccountMeta) AccountMeta {
	return AccountMeta{
		PublicKey:  m.PublicKey,
		IsSigner:   m.IsSigner || other.IsSigner,
		IsWritable: m.IsWritable || other.IsWritable,
	}
}

// rank orders accounts by (!IsSigner, !IsWritable).
func (m AccountMeta) rank() int {
	var r int
	if !m.IsSigner {
		r += 2
	}
	if !m.IsWritable {
		r++
	}
	return r
}

// SortableAccountMeta is a sortable []AccountMeta based on the solana transaction
// account sorting rules:
//
//  1. Writable signers
//  2. Readonly signers
//  3. Writable non-signers
//  4. Readonly non-signers
//
// Accounts of equal rank are not reordered relative to each other when
// sorted with sort.Stable.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
type SortableAccountMeta []AccountMeta

// Len is the number of elements in the collection.
func (s SortableAccountMeta) Len() int {
	return len(s)
}

// Less reports whether the element with
// index i should sort before the element with index j.
func (s SortableAccountMeta) Less(i int, j int) bool {
	return s[i].rank() < s[j].rank()
}

// Swap swaps the elements with indexes i and j.
func (s SortableAccountMeta) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// Equal reports whether both instructions invoke the same program with the
// same accounts and data.
func (i Instruction) Equal(other Instruction) bool {
	if !bytes.Equal(i.Program, other.Program) || !bytes.Equal(i.Data, other.Data) {
		return false
	}
	if len(i.Accounts) != len(other.Accounts) {
		return false
	}
	for idx := range i.Accounts {
		a, b := i.Accounts[idx], other.Accounts[idx]
		if !bytes.Equal(a.PublicKey, b.PublicKey) || a.IsSigner != b.IsSigner || a.IsWritable != b.IsWritable {
			return false
		}
	}
	return true
}

// CompiledInstruction represents an instruction that has been compiled into a transaction.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
