package address_lookup_table

import (
	"context"
	"crypto/ed25519"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/solana-sdk-go/pkg/cache"
	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/testutil"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]solana.AccountInfo
	calls    int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]solana.AccountInfo)}
}

func (f *fakeAccounts) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	info, ok := f.accounts[string(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return info, nil
}

func (f *fakeAccounts) setTable(address ed25519.PublicKey, addresses ...ed25519.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account := AddressLookupTableAccount{
		DeactivationSlot: math.MaxUint64,
		Addresses:        addresses,
	}
	f.accounts[string(address)] = solana.AccountInfo{
		Owner: ProgramKey,
		Data:  account.Marshal(),
	}
}

func TestResolver_GetTable(t *testing.T) {
	accounts := newFakeAccounts()
	resolver := NewRPCResolver(accounts, solana.CommitmentConfirmed, cache.NewCache(100))

	keys := testutil.GenerateSolanaKeys(t, 4)
	tableAddress := keys[0]
	accounts.setTable(tableAddress, keys[1:]...)

	for i := 0; i < 3; i++ {
		table, err := resolver.GetTable(context.Background(), tableAddress, false)
		require.NoError(t, err)
		assert.Equal(t, tableAddress, table.PublicKey)
		assert.Equal(t, keys[1:], table.Addresses)
	}
	assert.Equal(t, 1, accounts.calls)

	_, err := resolver.GetTable(context.Background(), tableAddress, true)
	require.NoError(t, err)
	assert.Equal(t, 2, accounts.calls)

	_, err = resolver.GetTable(context.Background(), keys[1], false)
	assert.True(t, errors.Is(err, ErrTableNotFound))

	accounts.accounts[string(keys[2])] = solana.AccountInfo{Owner: keys[3], Data: make([]byte, MetadataSize)}
	_, err = resolver.GetTable(context.Background(), keys[2], false)
	assert.True(t, errors.Is(err, ErrInvalidAccountType))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = resolver.GetTable(ctx, tableAddress, false)
	assert.Equal(t, context.Canceled, err)
}

func TestResolver_NoCache(t *testing.T) {
	accounts := newFakeAccounts()
	resolver := NewRPCResolver(accounts, solana.CommitmentConfirmed, nil)

	keys := testutil.GenerateSolanaKeys(t, 2)
	accounts.setTable(keys[0], keys[1])

	for i := 0; i < 2; i++ {
		_, err := resolver.GetTable(context.Background(), keys[0], false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, accounts.calls)
}

func TestResolveVersionedTransaction(t *testing.T) {
	accounts := newFakeAccounts()
	resolver := NewRPCResolver(accounts, solana.CommitmentConfirmed, cache.NewCache(100))

	payer := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 5)
	program, tableAddress := keys[0], keys[1]
	writable, readonly, extended := keys[2], keys[3], keys[4]

	// The cached table predates the extension that added extended.
	accounts.setTable(tableAddress, writable, readonly)
	_, err := resolver.GetTable(context.Background(), tableAddress, false)
	require.NoError(t, err)
	accounts.setTable(tableAddress, writable, readonly, extended)

	table := solana.AddressLookupTable{
		PublicKey: tableAddress,
		Addresses: []ed25519.PublicKey{writable, readonly, extended},
	}
	txn := solana.NewVersionedTransaction(
		payer.Public().(ed25519.PublicKey),
		[]solana.AddressLookupTable{table},
		solana.NewInstruction(
			program,
			[]byte{1, 2, 3},
			solana.NewAccountMeta(writable, false),
			solana.NewReadonlyAccountMeta(readonly, false),
			solana.NewAccountMeta(extended, false),
		),
	)
	txn.SetBlockhash(solana.Blockhash{9})
	require.NoError(t, txn.Sign(payer))

	raw, err := txn.Marshal()
	require.NoError(t, err)

	resolved, err := ResolveVersionedTransaction(context.Background(), resolver, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, accounts.calls)

	verified, err := resolved.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, verified)

	require.Len(t, resolved.Instructions, 1)
	assert.Equal(t, txn.Instructions[0], resolved.Instructions[0])

	reencoded, err := resolved.Marshal()
	require.NoError(t, err)
	assert.Equal(t, raw, reencoded)

	legacy := solana.NewTransaction(payer.Public().(ed25519.PublicKey), solana.NewInstruction(program, nil))
	legacyRaw, err := legacy.Marshal()
	require.NoError(t, err)
	_, err = ResolveVersionedTransaction(context.Background(), resolver, legacyRaw)
	assert.True(t, errors.Is(err, solana.ErrInvalidVersionPrefix))
}

func TestResolveMessage_UnknownTable(t *testing.T) {
	resolver := NewRPCResolver(newFakeAccounts(), solana.CommitmentConfirmed, nil)

	keys := testutil.GenerateSolanaKeys(t, 2)
	m := &solana.MessageV0{
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{PublicKey: keys[0], WritableIndexes: []byte{0}},
		},
	}

	_, _, err := ResolveMessage(context.Background(), resolver, m)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestResolver_ConcurrentMisses(t *testing.T) {
	accounts := newFakeAccounts()
	resolver := NewRPCResolver(accounts, solana.CommitmentConfirmed, cache.NewCache(100))

	keys := testutil.GenerateSolanaKeys(t, 3)
	accounts.setTable(keys[0], keys[1:]...)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			table, err := resolver.GetTable(context.Background(), keys[0], false)
			assert.NoError(t, err)
			assert.Len(t, table.Addresses, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accounts.calls)
}
