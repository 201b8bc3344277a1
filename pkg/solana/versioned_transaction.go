package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// VersionedTransaction is a transaction compiled into a v0 message, loading
// eligible accounts from AddressTableLookups.
type VersionedTransaction struct {
	Transaction
	AddressTableLookups []AddressLookupTable
}

func NewVersionedTransaction(payer ed25519.PublicKey, addressLookupTables []AddressLookupTable, instructions ...Instruction) VersionedTransaction {
	return VersionedTransaction{
		Transaction:         NewTransaction(payer, instructions...),
		AddressTableLookups: addressLookupTables,
	}
}

// CompileMessage compiles the transaction into a v0 message. The message has
// no lookups if none of the tables contain an eligible account.
func (t *VersionedTransaction) CompileMessage() (*MessageV0, error) {
	payer, blockhash, instructions, err := t.compileInputs()
	if err != nil {
		return nil, err
	}
	return CompileV0Message(payer, blockhash, t.AddressTableLookups, instructions...)
}

func (t *VersionedTransaction) MessageBytes() ([]byte, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return nil, err
	}
	return m.Marshal(), nil
}

func (t *VersionedTransaction) Sign(signers ...ed25519.PrivateKey) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	if len(signers) == 0 {
		t.syncSignatures(m)
		return nil
	}
	return t.sign(m, NewKeyring(signers...), publicKeysOf(signers))
}

func (t *VersionedTransaction) SignWith(signer Signer, pubs ...ed25519.PublicKey) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	return t.sign(m, signer, pubs)
}

func (t *VersionedTransaction) AddSignature(pub ed25519.PublicKey, sig Signature) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	return t.addSignature(m, pub, sig)
}

func (t *VersionedTransaction) VerifySignatures() (bool, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return false, err
	}
	return t.verifySignatures(m), nil
}

func (t *VersionedTransaction) Marshal() ([]byte, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return nil, err
	}
	return t.encode(m).Marshal(), nil
}

func (t *VersionedTransaction) ToBase64() (string, error) {
	b, err := t.Marshal()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (t *VersionedTransaction) String() string {
	var sb strings.Builder
	writeTransaction(&sb, &t.Transaction)
	if len(t.AddressTableLookups) > 0 {
		sb.WriteString("Address Lookup Tables:\n")
		for _, table := range t.AddressTableLookups {
			sb.WriteString(fmt.Sprintf("  %s:\n", base58.Encode(table.PublicKey)))
			for i, address := range table.Addresses {
				if address == nil {
					continue
				}
				sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(address)))
			}
		}
	}
	return sb.String()
}

// PopulateV0 reconstructs a transaction from a v0 message, its signatures,
// and the addresses its lookups resolved to. The lookup tables of the
// result contain only the addresses the message references.
func PopulateV0(m *MessageV0, sigs []Signature, loaded LoadedAddresses) (*VersionedTransaction, error) {
	if err := m.Header.validate(len(m.Accounts)); err != nil {
		return nil, err
	}
	if err := validateInstructions(&m.MessageBody, m.NumAccounts()); err != nil {
		return nil, err
	}

	accounts, err := m.AccountKeys(loaded)
	if err != nil {
		return nil, err
	}

	t := &VersionedTransaction{
		AddressTableLookups: m.lookupTables(loaded),
	}
	if err := t.populate(m, accounts, sigs); err != nil {
		return nil, err
	}
	return t, nil
}

// DeserializeVersionedTransaction parses a v0 wire transaction, resolving its
// lookups against tables.
func DeserializeVersionedTransaction(b []byte, tables []AddressLookupTable) (*VersionedTransaction, error) {
	var encoded EncodedTransaction
	if err := encoded.Unmarshal(b); err != nil {
		return nil, err
	}

	m, ok := encoded.Message.(*MessageV0)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidVersionPrefix, "expected v0 message, got %s", encoded.Message.Version())
	}

	loaded, err := m.LoadAddresses(tables)
	if err != nil {
		return nil, err
	}

	return PopulateV0(m, encoded.Signatures, loaded)
}
