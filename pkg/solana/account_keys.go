package solana

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"
)

var zeroKey = make(ed25519.PublicKey, ed25519.PublicKeySize)

// normalizeKey maps an empty key to the zero key, and rejects anything that
// isn't a full public key.
func normalizeKey(key ed25519.PublicKey) (ed25519.PublicKey, error) {
	switch len(key) {
	case 0:
		return zeroKey, nil
	case ed25519.PublicKeySize:
		return key, nil
	default:
		return nil, errors.Wrapf(ErrInvalidPublicKey, "invalid key length: %d", len(key))
	}
}

// AccountKeysList is the deduplicated set of accounts referenced by a
// transaction. Accounts are kept in insertion order, and adding an account
// that is already present merges its privileges instead of appending it.
//
// An AccountKeysList is built for a single compilation, and is not safe for
// concurrent use.
type AccountKeysList struct {
	feePayer ed25519.PublicKey
	accounts *linkedhashmap.Map
	err      error
}

// NewAccountKeysList returns a list seeded with the fee payer, which is
// always a writable signer.
func NewAccountKeysList(feePayer ed25519.PublicKey) *AccountKeysList {
	l := &AccountKeysList{
		accounts: linkedhashmap.New(),
	}

	payer, err := normalizeKey(feePayer)
	if err != nil {
		l.err = errors.Wrap(err, "invalid fee payer")
		return l
	}

	l.feePayer = payer
	l.accounts.Put(string(payer), NewAccountMeta(payer, true))
	return l
}

// Add adds the accounts to the list.
func (l *AccountKeysList) Add(accounts ...AccountMeta) {
	for _, account := range accounts {
		if l.err != nil {
			return
		}

		key, err := normalizeKey(account.PublicKey)
		if err != nil {
			l.err = err
			return
		}
		account.PublicKey = key

		if existing, ok := l.accounts.Get(string(key)); ok {
			account = existing.(AccountMeta).Merge(account)
		}
		l.accounts.Put(string(key), account)
	}
}

// AddInstruction adds the accounts referenced by the instruction, followed by
// the program it invokes.
func (l *AccountKeysList) AddInstruction(instruction Instruction) {
	l.Add(instruction.Accounts...)
	l.Add(NewReadonlyAccountMeta(instruction.Program, false))
}

// Len returns the number of unique accounts in the list.
func (l *AccountKeysList) Len() int {
	return l.accounts.Size()
}

// AccountList returns the accounts sorted by privilege, with insertion order
// preserved amongst accounts of the same privilege.
func (l *AccountKeysList) AccountList() ([]AccountMeta, error) {
	if l.err != nil {
		return nil, l.err
	}

	accounts := make([]AccountMeta, 0, l.accounts.Size())
	for _, v := range l.accounts.Values() {
		accounts = append(accounts, v.(AccountMeta))
	}

	sort.Stable(SortableAccountMeta(accounts))

	if err := validateAccountOrdering(l.feePayer, accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

// validateAccountOrdering checks that the fee payer is the first account, and
// that it appears exactly once.
func validateAccountOrdering(feePayer ed25519.PublicKey, accounts []AccountMeta) error {
	if len(accounts) == 0 || !bytes.Equal(accounts[0].PublicKey, feePayer) {
		return ErrInternalOrdering
	}
	if !accounts[0].IsSigner || !accounts[0].IsWritable {
		return errors.Wrap(ErrInternalOrdering, "fee payer must be a writable signer")
	}

	for i := 1; i < len(accounts); i++ {
		if bytes.Equal(accounts[i].PublicKey, feePayer) {
			return errors.Wrapf(ErrDuplicateFeePayerPosition, "fee payer at index %d", i)
		}
		if accounts[i].rank() < accounts[i-1].rank() {
			return errors.Wrapf(ErrInternalOrdering, "account %d out of order", i)
		}
	}

	return nil
}
