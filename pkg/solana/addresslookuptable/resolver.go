package address_lookup_table

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/solana-sdk-go/pkg/cache"
	"github.com/code-payments/solana-sdk-go/pkg/metrics"
	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/sync"
)

const (
	metricsStructName       = "address_lookup_table.resolver"
	fetchMetricName         = "AddressLookupTable/fetch"
	fetchDurationMetricName = "AddressLookupTable/fetch_duration"
)

var ErrTableNotFound = errors.New("address lookup table not found")

// Resolver fetches the address lists of lookup tables.
type Resolver interface {
	// GetTable returns the table at address. If refresh is set, cached
	// state is bypassed.
	GetTable(ctx context.Context, address ed25519.PublicKey, refresh bool) (solana.AddressLookupTable, error)
}

// AccountGetter is the subset of solana.Client a Resolver needs.
type AccountGetter interface {
	GetAccountInfo(ed25519.PublicKey, solana.Commitment) (solana.AccountInfo, error)
}

type rpcResolver struct {
	log        *logrus.Entry
	client     AccountGetter
	commitment solana.Commitment
	cache      cache.Cache
	locks      *sync.StripedLock
}

// NewRPCResolver returns a Resolver that reads table accounts through client.
// Fetched tables are kept in c, where each table weighs its address count
// plus one. A nil cache disables caching.
func NewRPCResolver(client AccountGetter, commitment solana.Commitment, c cache.Cache) Resolver {
	return &rpcResolver{
		log:        logrus.StandardLogger().WithField("type", "solana/address_lookup_table/resolver"),
		client:     client,
		commitment: commitment,
		cache:      c,
		locks:      sync.NewStripedLock(64),
	}
}

func (r *rpcResolver) GetTable(ctx context.Context, address ed25519.PublicKey, refresh bool) (table solana.AddressLookupTable, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetTable")
	tracer.AddAttribute("refresh", refresh)
	defer func() {
		tracer.EndWithError(err)
	}()

	if err := ctx.Err(); err != nil {
		return solana.AddressLookupTable{}, err
	}

	key := base58.Encode(address)
	log := r.log.WithField("table", key)

	if r.cache != nil && !refresh {
		if cached, ok := r.cache.Retrieve(key); ok {
			return cached.(solana.AddressLookupTable), nil
		}
	}

	// Concurrent misses for the same table share a single fetch.
	mu := r.locks.Get(address)
	mu.Lock()
	defer mu.Unlock()

	if r.cache != nil && !refresh {
		if cached, ok := r.cache.Retrieve(key); ok {
			return cached.(solana.AddressLookupTable), nil
		}
		log.Debug("table cache miss")
	}

	metrics.RecordCount(ctx, fetchMetricName, 1)

	start := time.Now()
	info, err := r.client.GetAccountInfo(address, r.commitment)
	metrics.RecordDuration(ctx, fetchDurationMetricName, time.Since(start))
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return solana.AddressLookupTable{}, errors.Wrap(ErrTableNotFound, key)
	} else if err != nil {
		log.WithError(err).Warn("failed to fetch table")
		return solana.AddressLookupTable{}, errors.Wrapf(err, "failed to fetch table %s", key)
	}

	if !bytes.Equal(info.Owner, ProgramKey) {
		return solana.AddressLookupTable{}, errors.Wrapf(ErrInvalidAccountType, "table %s not owned by the lookup table program", key)
	}

	var account AddressLookupTableAccount
	if err := account.Unmarshal(info.Data); err != nil {
		log.WithError(err).Warn("invalid table account")
		return solana.AddressLookupTable{}, errors.Wrapf(err, "invalid table %s", key)
	}
	if !account.IsActive() {
		log.WithField("deactivation_slot", account.DeactivationSlot).Debug("table is deactivated")
	}

	table = account.ToAddressLookupTable(address)
	if r.cache != nil {
		r.cache.Insert(key, table, len(table.Addresses)+1)
	}
	return table, nil
}

// ResolveMessage fetches every table m references and returns them along
// with the addresses m loads from them.
//
// Tables can only grow, so a cached table that is too short for one of the
// message's indexes is fetched again before the lookup is reported as
// unknown.
func ResolveMessage(ctx context.Context, r Resolver, m *solana.MessageV0) ([]solana.AddressLookupTable, solana.LoadedAddresses, error) {
	tables := make([]solana.AddressLookupTable, len(m.AddressTableLookups))
	for i, lookup := range m.AddressTableLookups {
		table, err := r.GetTable(ctx, lookup.PublicKey, false)
		if err != nil {
			return nil, solana.LoadedAddresses{}, err
		}

		if !covers(table, lookup) {
			if table, err = r.GetTable(ctx, lookup.PublicKey, true); err != nil {
				return nil, solana.LoadedAddresses{}, err
			}
		}

		tables[i] = table
	}

	loaded, err := m.LoadAddresses(tables)
	if err != nil {
		return nil, solana.LoadedAddresses{}, err
	}
	return tables, loaded, nil
}

// ResolveVersionedTransaction parses a v0 wire transaction, resolving its
// lookups through r.
func ResolveVersionedTransaction(ctx context.Context, r Resolver, raw []byte) (*solana.VersionedTransaction, error) {
	var encoded solana.EncodedTransaction
	if err := encoded.Unmarshal(raw); err != nil {
		return nil, err
	}

	m, ok := encoded.Message.(*solana.MessageV0)
	if !ok {
		return nil, errors.Wrapf(solana.ErrInvalidVersionPrefix, "expected v0 message, got %s", encoded.Message.Version())
	}

	_, loaded, err := ResolveMessage(ctx, r, m)
	if err != nil {
		return nil, err
	}
	return solana.PopulateV0(m, encoded.Signatures, loaded)
}

func covers(table solana.AddressLookupTable, lookup solana.MessageAddressTableLookup) bool {
	for _, indexes := range [][]byte{lookup.WritableIndexes, lookup.ReadonlyIndexes} {
		for _, index := range indexes {
			if int(index) >= len(table.Addresses) {
				return false
			}
		}
	}
	return true
}
