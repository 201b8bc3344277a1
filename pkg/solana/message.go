package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana/shortvec"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232

	// MaxAccounts is the number of accounts addressable by a single byte index.
	MaxAccounts = 256

	// versionPrefixMask marks a versioned message when set on the first byte.
	versionPrefixMask = 0x80
)

var (
	ErrMalformedLength           = shortvec.ErrMalformedLength
	ErrTruncatedData             = errors.New("truncated data")
	ErrTrailingData              = errors.New("unexpected trailing data")
	ErrTooManyAccounts           = errors.New("too many accounts")
	ErrDuplicateFeePayerPosition = errors.New("fee payer appears more than once")
	ErrInternalOrdering          = errors.New("fee payer is not the first account")
	ErrUnknownLookupIndex        = errors.New("account index out of range")
	ErrUnresolvedLookup          = errors.New("address table lookup not resolved")
	ErrInvalidVersionPrefix      = errors.New("unsupported message version")
	ErrInvalidHeader             = errors.New("invalid message header")
	ErrSignatureCountMismatch    = errors.New("signature count does not match header")
	ErrNoFeePayer                = errors.New("fee payer not set")
	ErrInvalidPublicKey          = errors.New("invalid public key")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}

// Header summarizes the privileges of the static accounts of a message.
//
// The first NumRequiredSignatures accounts are signers, of which the last
// NumReadonlySigned are readonly. The last NumReadonlyUnsigned static
// accounts are readonly non-signers.
type Header struct {
	NumRequiredSignatures byte
	NumReadonlySigned     byte
	NumReadonlyUnsigned   byte
}

// NewHeader derives the header for a privilege sorted account list.
func NewHeader(accounts []AccountMeta) Header {
	var h Header
	for _, account := range accounts {
		if account.IsSigner {
			h.NumRequiredSignatures++

			if !account.IsWritable {
				h.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			h.NumReadonlyUnsigned++
		}
	}
	return h
}

func (h Header) validate(numStaticAccounts int) error {
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsigned) > numStaticAccounts {
		return errors.Wrapf(ErrInvalidHeader, "header references %d accounts, message has %d", int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsigned), numStaticAccounts)
	}
	if h.NumRequiredSignatures > 0 && h.NumReadonlySigned >= h.NumRequiredSignatures {
		return errors.Wrap(ErrInvalidHeader, "fee payer must be writable")
	}
	if h.NumRequiredSignatures == 0 && h.NumReadonlySigned > 0 {
		return errors.Wrap(ErrInvalidHeader, "readonly signers without signatures")
	}
	return nil
}

// isAccountSigner reports whether the account at index is a signer. Only
// static accounts may sign.
func isAccountSigner(h Header, index int) bool {
	return index >= 0 && index < int(h.NumRequiredSignatures)
}

// isAccountWritable reports whether the account at index is writable, given
// numStatic static accounts followed by numWritableLookups writable and then
// the remaining readonly lookup accounts, numLookups in total.
func isAccountWritable(h Header, numStatic, numWritableLookups, numLookups, index int) bool {
	switch {
	case index < 0:
		return false
	case index < int(h.NumRequiredSignatures):
		return index < int(h.NumRequiredSignatures)-int(h.NumReadonlySigned)
	case index < numStatic:
		return index < numStatic-int(h.NumReadonlyUnsigned)
	case index < numStatic+numLookups:
		return index-numStatic < numWritableLookups
	default:
		return false
	}
}

// MessageBody is the content shared by every message version.
type MessageBody struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

// VersionedMessage is implemented by Message and MessageV0.
type VersionedMessage interface {
	Version() MessageVersion

	// Body returns the static content of the message.
	Body() *MessageBody

	// NumAccounts returns the size of the index space referenced by
	// instructions, including lookup table accounts.
	NumAccounts() int

	// NumStaticAccounts returns the number of accounts stored in the message.
	NumStaticAccounts() int

	IsAccountSigner(index int) bool
	IsAccountWritable(index int) bool

	Marshal() []byte
	String() string
}

// Message is a legacy message, in which every account is stored in the
// message itself.
type Message struct {
	MessageBody
}

func (m *Message) Version() MessageVersion {
	return MessageVersionLegacy
}

func (m *Message) Body() *MessageBody {
	return &m.MessageBody
}

func (m *Message) NumAccounts() int {
	return len(m.Accounts)
}

func (m *Message) NumStaticAccounts() int {
	return len(m.Accounts)
}

func (m *Message) IsAccountSigner(index int) bool {
	return isAccountSigner(m.Header, index)
}

func (m *Message) IsAccountWritable(index int) bool {
	return isAccountWritable(m.Header, len(m.Accounts), 0, 0, index)
}

func (m *Message) String() string {
	var sb strings.Builder
	writeMessageBody(&sb, m.Version(), &m.MessageBody)
	return sb.String()
}

// MessageAddressTableLookup references accounts stored in an on-chain lookup
// table. Indexes are positions in the table's address list.
type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

// MessageV0 is a versioned message that may load accounts from address
// lookup tables at execution time.
//
// Instruction account indexes address the static accounts first, then the
// writable lookup accounts of every table, then the readonly lookup accounts
// of every table.
type MessageV0 struct {
	MessageBody
	AddressTableLookups []MessageAddressTableLookup
}

func (m *MessageV0) Version() MessageVersion {
	return MessageVersion0
}

func (m *MessageV0) Body() *MessageBody {
	return &m.MessageBody
}

func (m *MessageV0) NumAccounts() int {
	return len(m.Accounts) + m.NumLookupAccounts()
}

func (m *MessageV0) NumStaticAccounts() int {
	return len(m.Accounts)
}

// NumWritableLookups returns the number of writable accounts loaded from
// lookup tables.
func (m *MessageV0) NumWritableLookups() int {
	var n int
	for _, l := range m.AddressTableLookups {
		n += len(l.WritableIndexes)
	}
	return n
}

// NumReadonlyLookups returns the number of readonly accounts loaded from
// lookup tables.
func (m *MessageV0) NumReadonlyLookups() int {
	var n int
	for _, l := range m.AddressTableLookups {
		n += len(l.ReadonlyIndexes)
	}
	return n
}

// NumLookupAccounts returns the number of accounts loaded from lookup tables.
func (m *MessageV0) NumLookupAccounts() int {
	return m.NumWritableLookups() + m.NumReadonlyLookups()
}

func (m *MessageV0) IsAccountSigner(index int) bool {
	return isAccountSigner(m.Header, index)
}

func (m *MessageV0) IsAccountWritable(index int) bool {
	return isAccountWritable(m.Header, len(m.Accounts), m.NumWritableLookups(), m.NumLookupAccounts(), index)
}

func (m *MessageV0) String() string {
	var sb strings.Builder
	writeMessageBody(&sb, m.Version(), &m.MessageBody)
	if len(m.AddressTableLookups) > 0 {
		sb.WriteString("  Address Table Lookups:\n")
		for i := range m.AddressTableLookups {
			sb.WriteString(fmt.Sprintf("    %s:\n", base58.Encode(m.AddressTableLookups[i].PublicKey)))
			sb.WriteString(fmt.Sprintf("      Writable Indexes: %v\n", m.AddressTableLookups[i].WritableIndexes))
			sb.WriteString(fmt.Sprintf("      Readonly Indexes: %v\n", m.AddressTableLookups[i].ReadonlyIndexes))
		}
	}
	return sb.String()
}

func writeMessageBody(sb *strings.Builder, version MessageVersion, m *MessageBody) {
	sb.WriteString("Message:\n")
	sb.WriteString(fmt.Sprintf("  Version: %s\n", version.String()))
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumRequiredSignatures: %d\n", m.Header.NumRequiredSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadonlySigned: %d\n", m.Header.NumReadonlySigned))
	sb.WriteString(fmt.Sprintf("    NumReadonlyUnsigned: %d\n", m.Header.NumReadonlyUnsigned))
	sb.WriteString(fmt.Sprintf("  RecentBlockhash: %s\n", m.RecentBlockhash))
	sb.WriteString("  Static Accounts:\n")
	for i, a := range m.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i := range m.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", m.Instructions[i].ProgramIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", m.Instructions[i].Accounts))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", m.Instructions[i].Data))
	}
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if string(val) == string(item) {
			return i
		}
	}

	return -1
}

func base58Key(key ed25519.PublicKey) string {
	return base58.Encode(key)
}
