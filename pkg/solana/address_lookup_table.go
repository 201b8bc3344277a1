package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// AddressLookupTable is the address list of an on-chain lookup table.
//
// Addresses may be sparse: a nil entry is a position whose address is not
// known, and is never matched when compiling.
type AddressLookupTable struct {
	PublicKey ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

type SortableAddressLookupTables []AddressLookupTable

func (s SortableAddressLookupTables) Len() int {
	return len(s)
}

func (s SortableAddressLookupTables) Less(i int, j int) bool {
	return bytes.Compare(s[i].PublicKey, s[j].PublicKey) < 0
}

func (s SortableAddressLookupTables) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// LoadedAddresses are the accounts a v0 message loads from lookup tables, in
// index space order.
type LoadedAddresses struct {
	Writable []ed25519.PublicKey
	Readonly []ed25519.PublicKey
}

type loadedAddressesJSON struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// MarshalJSON encodes the addresses as base58 strings, as RPC nodes report
// them in transaction metadata.
func (l LoadedAddresses) MarshalJSON() ([]byte, error) {
	return json.Marshal(loadedAddressesJSON{
		Writable: encodeKeys(l.Writable),
		Readonly: encodeKeys(l.Readonly),
	})
}

func (l *LoadedAddresses) UnmarshalJSON(b []byte) (err error) {
	var raw loadedAddressesJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if l.Writable, err = decodeKeys(raw.Writable); err != nil {
		return errors.Wrap(err, "invalid writable address")
	}
	if l.Readonly, err = decodeKeys(raw.Readonly); err != nil {
		return errors.Wrap(err, "invalid readonly address")
	}
	return nil
}

// LoadAddresses resolves the message's lookups against tables.
func (m *MessageV0) LoadAddresses(tables []AddressLookupTable) (LoadedAddresses, error) {
	var loaded LoadedAddresses

	for _, lookup := range m.AddressTableLookups {
		table, ok := findTable(tables, lookup.PublicKey)
		if !ok {
			return LoadedAddresses{}, errors.Wrapf(ErrUnresolvedLookup, "missing table %s", base58Key(lookup.PublicKey))
		}

		writable, err := table.resolve(lookup.WritableIndexes)
		if err != nil {
			return LoadedAddresses{}, err
		}
		readonly, err := table.resolve(lookup.ReadonlyIndexes)
		if err != nil {
			return LoadedAddresses{}, err
		}

		loaded.Writable = append(loaded.Writable, writable...)
		loaded.Readonly = append(loaded.Readonly, readonly...)
	}

	return loaded, nil
}

// AccountKeys returns the full index space of the message, given the
// addresses it loads.
func (m *MessageV0) AccountKeys(loaded LoadedAddresses) ([]ed25519.PublicKey, error) {
	if len(loaded.Writable) != m.NumWritableLookups() || len(loaded.Readonly) != m.NumReadonlyLookups() {
		return nil, errors.Wrapf(
			ErrUnresolvedLookup,
			"expected %d writable and %d readonly addresses, got %d and %d",
			m.NumWritableLookups(),
			m.NumReadonlyLookups(),
			len(loaded.Writable),
			len(loaded.Readonly),
		)
	}

	keys := make([]ed25519.PublicKey, 0, m.NumAccounts())
	keys = append(keys, m.Accounts...)
	keys = append(keys, loaded.Writable...)
	keys = append(keys, loaded.Readonly...)
	return keys, nil
}

// lookupTables rebuilds the parts of each referenced table that the message
// uses. Positions the message does not reference are left nil.
func (m *MessageV0) lookupTables(loaded LoadedAddresses) []AddressLookupTable {
	tables := make([]AddressLookupTable, len(m.AddressTableLookups))

	var writable, readonly int
	for i, lookup := range m.AddressTableLookups {
		size := 0
		for _, index := range append(append([]byte{}, lookup.WritableIndexes...), lookup.ReadonlyIndexes...) {
			if int(index)+1 > size {
				size = int(index) + 1
			}
		}

		tables[i] = AddressLookupTable{
			PublicKey: lookup.PublicKey,
			Addresses: make([]ed25519.PublicKey, size),
		}
		for _, index := range lookup.WritableIndexes {
			if tables[i].Addresses[index] == nil {
				tables[i].Addresses[index] = loaded.Writable[writable]
			}
			writable++
		}
		for _, index := range lookup.ReadonlyIndexes {
			if tables[i].Addresses[index] == nil {
				tables[i].Addresses[index] = loaded.Readonly[readonly]
			}
			readonly++
		}
	}

	return tables
}

func (t AddressLookupTable) resolve(indexes []byte) ([]ed25519.PublicKey, error) {
	resolved := make([]ed25519.PublicKey, len(indexes))
	for i, index := range indexes {
		if int(index) >= len(t.Addresses) || t.Addresses[index] == nil {
			return nil, errors.Wrapf(ErrUnknownLookupIndex, "index %d not in table %s", index, base58Key(t.PublicKey))
		}
		resolved[i] = t.Addresses[index]
	}
	return resolved, nil
}

func findTable(tables []AddressLookupTable, key ed25519.PublicKey) (AddressLookupTable, bool) {
	for _, t := range tables {
		if bytes.Equal(t.PublicKey, key) {
			return t, true
		}
	}
	return AddressLookupTable{}, false
}

func encodeKeys(keys []ed25519.PublicKey) []string {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		encoded[i] = base58.Encode(key)
	}
	return encoded
}

func decodeKeys(encoded []string) ([]ed25519.PublicKey, error) {
	if len(encoded) == 0 {
		return nil, nil
	}

	keys := make([]ed25519.PublicKey, len(encoded))
	for i, s := range encoded {
		key, err := base58.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(key) != ed25519.PublicKeySize {
			return nil, errors.Wrapf(ErrInvalidPublicKey, "%s", s)
		}
		keys[i] = key
	}
	return keys, nil
}
