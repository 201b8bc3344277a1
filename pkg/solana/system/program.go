package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/solana/binary"
)

var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = iota
	// nolint:varcheck,deadcode,unused
	commandAssign
	commandTransfer
	// nolint:varcheck,deadcode,unused
	commandCreateAccountWithSeed
	commandAdvanceNonceAccount
	commandWithdrawNonceAccount
	commandInitializeNonceAccount
	commandAuthorizeNonceAccount
	// nolint:varcheck,deadcode,unused
	commandAllocate
	// nolint:varcheck,deadcode,unused
	commandAllocateWithSeed
	// nolint:varcheck,deadcode,unused
	commandAssignWithSeed
	// nolint:varcheck,deadcode,unused
	commandTransferWithSeed
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	e := binary.NewEncoder(4 + 2*8 + ed25519.PublicKeySize)
	e.PutUint32(commandCreateAccount)
	e.PutUint64(lamports)
	e.PutUint64(size)
	e.PutKey32(owner)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(ix solana.Instruction) (*DecompiledCreateAccount, error) {
	d, err := decodeCommand(ix, commandCreateAccount, 2)
	if err != nil {
		return nil, err
	}
	if len(ix.Data) != 4+2*8+ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledCreateAccount{
		Funder:   ix.Accounts[0].PublicKey,
		Address:  ix.Accounts[1].PublicKey,
		Lamports: d.GetUint64(),
		Size:     d.GetUint64(),
		Owner:    d.GetKey32(),
	}, nil
}

// Transfer returns an instruction moving lamports between two system
// accounts.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L92-L97
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	e := binary.NewEncoder(4 + 8)
	e.PutUint32(commandTransfer)
	e.PutUint64(lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(ix solana.Instruction) (*DecompiledTransfer, error) {
	d, err := decodeCommand(ix, commandTransfer, 2)
	if err != nil {
		return nil, err
	}
	if len(ix.Data) != 4+8 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledTransfer{
		From:     ix.Accounts[0].PublicKey,
		To:       ix.Accounts[1].PublicKey,
		Lamports: d.GetUint64(),
	}, nil
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L113-L119
func AdvanceNonce(nonce, authority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] Nonce account
	//   1. [] RecentBlockhashes sysvar
	//   2. [SIGNER] Nonce authority
	e := binary.NewEncoder(4)
	e.PutUint32(commandAdvanceNonceAccount)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(nonce, false),
		solana.NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledAdvanceNonce struct {
	Nonce     ed25519.PublicKey
	Authority ed25519.PublicKey
}

func DecompileAdvanceNonce(ix solana.Instruction) (*DecompiledAdvanceNonce, error) {
	if _, err := decodeCommand(ix, commandAdvanceNonceAccount, 3); err != nil {
		return nil, err
	}
	if len(ix.Data) != 4 {
		return nil, solana.ErrIncorrectInstruction
	}
	if !bytes.Equal(RecentBlockhashesSysVar, ix.Accounts[1].PublicKey) {
		return nil, errors.Errorf("invalid RecentBlockhashesSysVar")
	}

	return &DecompiledAdvanceNonce{
		Nonce:     ix.Accounts[0].PublicKey,
		Authority: ix.Accounts[2].PublicKey,
	}, nil
}

// WithdrawNonce returns an instruction to withdraw funds from a nonce account
//
// The `uint64` parameter is the lamports to withdraw, which must leave the
// account balance above the rent exempt reserve or at zero.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L131
func WithdrawNonce(nonce, authority, recipient ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE] Nonce account
	//   1. [WRITE] Recipient account
	//   2. [] RecentBlockhashes sysvar
	//   3. [] Rent sysvar
	//   4. [SIGNER] Nonce authority
	e := binary.NewEncoder(4 + 8)
	e.PutUint32(commandWithdrawNonceAccount)
	e.PutUint64(lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(nonce, false),
		solana.NewAccountMeta(recipient, false),
		solana.NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
		solana.NewReadonlyAccountMeta(RentSysVar, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledWithdrawNonce struct {
	Nonce     ed25519.PublicKey
	Authority ed25519.PublicKey
	Recipient ed25519.PublicKey
	Lamports  uint64
}

func DecompileWithdrawNonce(ix solana.Instruction) (*DecompiledWithdrawNonce, error) {
	d, err := decodeCommand(ix, commandWithdrawNonceAccount, 5)
	if err != nil {
		return nil, err
	}
	if len(ix.Data) != 4+8 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledWithdrawNonce{
		Nonce:     ix.Accounts[0].PublicKey,
		Recipient: ix.Accounts[1].PublicKey,
		Authority: ix.Accounts[4].PublicKey,
		Lamports:  d.GetUint64(),
	}, nil
}

// InitializeNonce returns an instruction to change the state of an
// uninitialized nonce account to initialized, setting the nonce value.
//
// No signatures are required to execute this instruction, enabling derived
// nonce account addresses.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L146
func InitializeNonce(nonce, authority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] Nonce account
	//   1. [] RecentBlockhashes sysvar
	//   2. [] Rent sysvar
	e := binary.NewEncoder(4 + ed25519.PublicKeySize)
	e.PutUint32(commandInitializeNonceAccount)
	e.PutKey32(authority)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(nonce, false),
		solana.NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
		solana.NewReadonlyAccountMeta(RentSysVar, false),
	)
}

type DecompiledInitializeNonce struct {
	Nonce     ed25519.PublicKey
	Authority ed25519.PublicKey
}

func DecompileInitializeNonce(ix solana.Instruction) (*DecompiledInitializeNonce, error) {
	d, err := decodeCommand(ix, commandInitializeNonceAccount, 3)
	if err != nil {
		return nil, err
	}
	if len(ix.Data) != 4+ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledInitializeNonce{
		Nonce:     ix.Accounts[0].PublicKey,
		Authority: d.GetKey32(),
	}, nil
}

// AuthorizeNonce returns an instruction changing the entity authorized to
// execute nonce instructions on the account to newAuthority.
func AuthorizeNonce(nonce, authority, newAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] Nonce account
	//   1. [SIGNER] Nonce authority
	e := binary.NewEncoder(4 + ed25519.PublicKeySize)
	e.PutUint32(commandAuthorizeNonceAccount)
	e.PutKey32(newAuthority)

	return solana.NewInstruction(
		ProgramKey[:],
		e.Bytes(),
		solana.NewAccountMeta(nonce, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledAuthorizeNonce struct {
	Nonce        ed25519.PublicKey
	Authority    ed25519.PublicKey
	NewAuthority ed25519.PublicKey
}

func DecompileAuthorizeNonce(ix solana.Instruction) (*DecompiledAuthorizeNonce, error) {
	d, err := decodeCommand(ix, commandAuthorizeNonceAccount, 2)
	if err != nil {
		return nil, err
	}
	if len(ix.Data) != 4+ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledAuthorizeNonce{
		Nonce:        ix.Accounts[0].PublicKey,
		Authority:    ix.Accounts[1].PublicKey,
		NewAuthority: d.GetKey32(),
	}, nil
}

// decodeCommand checks that ix is the given system command with at least
// numAccounts accounts, returning a decoder positioned after the command.
func decodeCommand(ix solana.Instruction, command uint32, numAccounts int) (*binary.Decoder, error) {
	if !bytes.Equal(ix.Program, ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}

	d := binary.NewDecoder(ix.Data)
	if d.GetUint32() != command || d.Err() != nil {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(ix.Accounts) < numAccounts {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	return d, nil
}
