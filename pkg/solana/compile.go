package solana

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/pkg/errors"
)

// CompileLegacyMessage compiles the instructions into a legacy message paid
// for by payer.
func CompileLegacyMessage(payer ed25519.PublicKey, blockhash Blockhash, instructions ...Instruction) (*Message, error) {
	accounts, err := collectAccounts(payer, instructions)
	if err != nil {
		return nil, err
	}
	if len(accounts) > MaxAccounts {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d accounts (max %d)", len(accounts), MaxAccounts)
	}

	m := &Message{
		MessageBody: MessageBody{
			Header:          NewHeader(accounts),
			Accounts:        publicKeys(accounts),
			RecentBlockhash: blockhash,
		},
	}

	m.Instructions, err = compileInstructions(m.Accounts, instructions)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// CompileV0Message compiles the instructions into a v0 message paid for by
// payer. Accounts that are neither signers nor invoked programs are loaded
// from the first lookup table, in address order, that contains them.
func CompileV0Message(payer ed25519.PublicKey, blockhash Blockhash, addressLookupTables []AddressLookupTable, instructions ...Instruction) (*MessageV0, error) {
	accounts, err := collectAccounts(payer, instructions)
	if err != nil {
		return nil, err
	}

	invoked := make(map[string]struct{})
	for _, instruction := range instructions {
		program, err := normalizeKey(instruction.Program)
		if err != nil {
			return nil, err
		}
		invoked[string(program)] = struct{}{}
	}

	// Sort address tables to guarantee consistent marshalling
	sortedAddressLookupTables := make([]AddressLookupTable, len(addressLookupTables))
	copy(sortedAddressLookupTables, addressLookupTables)
	sort.Sort(SortableAddressLookupTables(sortedAddressLookupTables))

	writableIndexes := make([][]byte, len(sortedAddressLookupTables))
	readonlyIndexes := make([][]byte, len(sortedAddressLookupTables))

	var static []AccountMeta
	for _, account := range accounts {
		_, isInvoked := invoked[string(account.PublicKey)]
		if account.IsSigner || isInvoked {
			static = append(static, account)
			continue
		}

		table, index, ok := findInLookupTables(sortedAddressLookupTables, account.PublicKey)
		if !ok {
			static = append(static, account)
			continue
		}

		if account.IsWritable {
			writableIndexes[table] = append(writableIndexes[table], index)
		} else {
			readonlyIndexes[table] = append(readonlyIndexes[table], index)
		}
	}

	m := &MessageV0{
		MessageBody: MessageBody{
			Header:          NewHeader(static),
			Accounts:        publicKeys(static),
			RecentBlockhash: blockhash,
		},
	}

	// The index space is static accounts, then the writable accounts of every
	// table, then the readonly accounts of every table.
	allAccounts := append([]ed25519.PublicKey{}, m.Accounts...)
	for i, indexes := range writableIndexes {
		for _, index := range indexes {
			allAccounts = append(allAccounts, sortedAddressLookupTables[i].Addresses[index])
		}
	}
	for i, indexes := range readonlyIndexes {
		for _, index := range indexes {
			allAccounts = append(allAccounts, sortedAddressLookupTables[i].Addresses[index])
		}
	}
	if len(allAccounts) > MaxAccounts {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d accounts (max %d)", len(allAccounts), MaxAccounts)
	}

	m.Instructions, err = compileInstructions(allAccounts, instructions)
	if err != nil {
		return nil, err
	}

	for i, addressLookupTable := range sortedAddressLookupTables {
		if len(writableIndexes[i]) == 0 && len(readonlyIndexes[i]) == 0 {
			continue
		}

		m.AddressTableLookups = append(m.AddressTableLookups, MessageAddressTableLookup{
			PublicKey:       addressLookupTable.PublicKey,
			WritableIndexes: writableIndexes[i],
			ReadonlyIndexes: readonlyIndexes[i],
		})
	}

	return m, nil
}

func collectAccounts(payer ed25519.PublicKey, instructions []Instruction) ([]AccountMeta, error) {
	if len(payer) == 0 {
		return nil, ErrNoFeePayer
	}

	keys := NewAccountKeysList(payer)
	for _, instruction := range instructions {
		keys.AddInstruction(instruction)
	}
	return keys.AccountList()
}

// findInLookupTables returns the first table, and the first position within
// it, containing key.
func findInLookupTables(tables []AddressLookupTable, key ed25519.PublicKey) (table int, index byte, ok bool) {
	for i, t := range tables {
		for j, address := range t.Addresses {
			if j >= MaxAccounts {
				break
			}
			if bytes.Equal(address, key) {
				return i, byte(j), true
			}
		}
	}
	return 0, 0, false
}

// compileInstructions rewrites the instructions to reference accounts by
// their position in accounts.
func compileInstructions(accounts []ed25519.PublicKey, instructions []Instruction) ([]CompiledInstruction, error) {
	positions := make(map[string]byte, len(accounts))
	for i := len(accounts) - 1; i >= 0; i-- {
		positions[string(accounts[i])] = byte(i)
	}

	positionOf := func(key ed25519.PublicKey) (byte, error) {
		key, err := normalizeKey(key)
		if err != nil {
			return 0, err
		}
		pos, ok := positions[string(key)]
		if !ok {
			return 0, errors.Wrap(ErrInternalOrdering, "account missing from compiled account list")
		}
		return pos, nil
	}

	compiled := make([]CompiledInstruction, 0, len(instructions))
	for _, i := range instructions {
		programIndex, err := positionOf(i.Program)
		if err != nil {
			return nil, err
		}

		c := CompiledInstruction{
			ProgramIndex: programIndex,
			Accounts:     make([]byte, 0, len(i.Accounts)),
			Data:         i.Data,
		}
		for _, a := range i.Accounts {
			index, err := positionOf(a.PublicKey)
			if err != nil {
				return nil, err
			}
			c.Accounts = append(c.Accounts, index)
		}

		compiled = append(compiled, c)
	}

	return compiled, nil
}

func publicKeys(accounts []AccountMeta) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, len(accounts))
	for i := range accounts {
		keys[i] = accounts[i].PublicKey
	}
	return keys
}
