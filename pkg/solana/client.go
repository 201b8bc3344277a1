package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/solana-sdk-go/pkg/retry"
	"github.com/code-payments/solana-sdk-go/pkg/retry/backoff"
)

const (
	// todo: we can retrieve these from the Syscall account
	//       but they're unlikely to change.
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is the rate at which blocks should be polled at.
	PollRate = (time.Second / slotsPerSec) / 2

	// Poll rate is ~2x the slot rate, and we want to wait ~32 slots
	sigStatusPollLimit = 2 * 32

	// Reference: https://github.com/solana-labs/solana/blob/14d793b22c1571fb092d5822189d5b64f32605e6/client/src/rpc_custom_error.rs#L10
	blockNotAvailableCode = -32004

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrBlockNotAvailable = errors.New("block not available")
	ErrNoBalance         = errors.New("no balance")
)

// AccountInfo contains the Solana account information
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations will be nil if the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() {
		return true
	}

	if s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}

	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

type Block struct {
	Hash       Blockhash
	PrevHash   Blockhash
	ParentSlot uint64
	Slot       uint64

	BlockTime    *time.Time
	Transactions []BlockTransaction
}

type BlockTransaction struct {
	Transaction EncodedTransaction
	Err         *TransactionError
	Meta        *TransactionMeta
}

type TransactionMeta struct {
	Err             interface{}     `json:"err"`
	Fee             uint64          `json:"fee"`
	PreBalances     []uint64        `json:"preBalances"`
	PostBalances    []uint64        `json:"postBalances"`
	LogMessages     []string        `json:"logMessages"`
	LoadedAddresses LoadedAddresses `json:"loadedAddresses"`
}

type ConfirmedTransaction struct {
	Slot        uint64
	BlockTime   *time.Time
	Transaction EncodedTransaction
	Err         *TransactionError
	Meta        *TransactionMeta
}

// AccountKeys returns the full account index space of the transaction,
// including any addresses loaded from lookup tables.
func (t ConfirmedTransaction) AccountKeys() ([]ed25519.PublicKey, error) {
	switch m := t.Transaction.Message.(type) {
	case *Message:
		return m.Accounts, nil
	case *MessageV0:
		var loaded LoadedAddresses
		if t.Meta != nil {
			loaded = t.Meta.LoadedAddresses
		}
		return m.AccountKeys(loaded)
	default:
		return nil, errors.New("transaction has no message")
	}
}

// SimulationResult is the outcome of simulating a transaction.
type SimulationResult struct {
	Err           *TransactionError
	Logs          []string
	UnitsConsumed uint64
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetBlock(slot uint64) (*Block, error)
	GetLatestBlockhash() (Blockhash, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	GetTransaction(Signature, Commitment) (ConfirmedTransaction, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)
	SimulateTransaction([]byte, Commitment) (*SimulationResult, error)
	SubmitTransaction([]byte, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type rpcResponse struct {
	Context struct {
		Slot int64 `json:"slot"`
	} `json:"context"`
	Value interface{} `json:"value"`
}

type client struct {
	log     *logrus.Entry
	client  jsonrpc.RPCClient
	conf    *ClientConfig
	retrier retry.Retrier

	blockMu   sync.RWMutex
	blockhash Blockhash
	lastWrite time.Time
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions returns a client configured with the specified RPC options.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return NewWithConfig(endpoint, opts, NewClientConfigFromEnv())
}

// NewWithConfig returns a client configured with the specified RPC options
// and runtime configuration.
func NewWithConfig(endpoint string, opts *jsonrpc.RPCClientOpts, conf *ClientConfig) Client {
	return &client{
		log:    logrus.StandardLogger().WithField("type", "solana/client"),
		client: jsonrpc.NewClientWithOpts(endpoint, opts),
		conf:   conf,
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.LimitConfig(conf.MaxAttempts),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
	}
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		allowed, err := c.conf.Limiter.Allow(method)
		if err != nil {
			c.log.WithError(err).WithField("method", method).Warn("failed to check rate limit")
		} else if !allowed {
			return errRateLimited
		}

		err = c.client.CallFor(out, method, params...)
		if err == nil {
			return nil
		}

		return c.handleRpcError(method, err)
	})

	return err
}

func (c *client) handleRpcError(method string, err error) error {
	log := c.log.WithField("method", method)

	switch typed := err.(type) {
	case *jsonrpc.RPCError:
		if typed.Code == 429 {
			log.Error("rate limited")
			return errRateLimited
		}
		if typed.Code >= 500 || typed.Code == rpcNodeUnhealthyCode {
			log.WithError(err).Warn("service error")
			return errServiceError
		}
	case *jsonrpc.HTTPError:
		if typed.Code == 429 {
			log.Error("rate limited")
			return errRateLimited
		}
		if typed.Code >= 500 {
			log.WithError(err).Warn("service error")
			return errServiceError
		}
	}

	return err
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrapf(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetSlot(commitment Commitment) (slot uint64, err error) {
	// note: we have to wrap the commitment in an []interface{} otherwise the
	//       solana RPC node complains. Technically this is a violation of the
	//       JSON RPC v2.0 spec.
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrapf(err, "getSlot() failed to send request")
	}

	return slot, nil
}

func (c *client) GetLatestBlockhash() (hash Blockhash, err error) {
	// To avoid having thrashing around a similar periodic interval, we
	// randomize when we refresh our block hash.
	base := c.conf.BlockhashCacheWindow.Get(context.Background())
	window := time.Duration(float64(base) * (0.8 + rand.Float64()))

	c.blockMu.RLock()
	if time.Since(c.lastWrite) < window {
		hash = c.blockhash
	}
	c.blockMu.RUnlock()

	if hash != (Blockhash{}) {
		return hash, nil
	}

	type response struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}

	var resp response
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return hash, errors.Wrapf(err, "getLatestBlockhash() failed to send request")
	}

	if hash, err = decodeBlockhash(resp.Value.Blockhash); err != nil {
		return hash, errors.Wrap(err, "invalid hash in response")
	}

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, nil
}

func (c *client) GetBlock(slot uint64) (block *Block, err error) {
	type rawBlock struct {
		Hash       string `json:"blockhash"` // Since this value is in base58, we can't []byte
		PrevHash   string `json:"previousBlockhash"`
		ParentSlot uint64 `json:"parentSlot"`

		RawTransactions []struct {
			Transaction []string         `json:"transaction"` // [string,encoding]
			Meta        *TransactionMeta `json:"meta"`
		} `json:"transactions"`

		BlockTime *int64 `json:"blockTime"`
	}

	config := struct {
		Encoding                       string `json:"encoding"`
		TransactionDetails             string `json:"transactionDetails"`
		MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
		Rewards                        bool   `json:"rewards"`
	}{
		Encoding:                       "base64",
		TransactionDetails:             "full",
		MaxSupportedTransactionVersion: 0,
	}

	var rb *rawBlock
	if err := c.call(&rb, "getBlock", slot, config); err != nil {
		if jsonRPCErr, ok := errors.Cause(err).(*jsonrpc.RPCError); ok && jsonRPCErr.Code == blockNotAvailableCode {
			return nil, ErrBlockNotAvailable
		}
		return nil, errors.Wrap(err, "getBlock() failed to send request")
	}

	// Not all slots contain a block, which manifests itself as having a nil block
	if rb == nil {
		return nil, nil
	}

	block = &Block{
		ParentSlot: rb.ParentSlot,
		Slot:       slot,
	}

	if rb.BlockTime != nil {
		t := time.Unix(*rb.BlockTime, 0)
		block.BlockTime = &t
	}

	if block.Hash, err = decodeBlockhash(rb.Hash); err != nil {
		return nil, errors.Wrap(err, "invalid hash")
	}
	if block.PrevHash, err = decodeBlockhash(rb.PrevHash); err != nil {
		return nil, errors.Wrapf(err, "invalid prevHash: %s", rb.PrevHash)
	}

	for i, txn := range rb.RawTransactions {
		t, err := decodeTransaction(txn.Transaction)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid transaction %d", i)
		}

		var txErr *TransactionError
		if txn.Meta != nil {
			txErr, err = ParseTransactionError(txn.Meta.Err)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction meta")
			}
		}

		block.Transactions = append(block.Transactions, BlockTransaction{
			Transaction: t,
			Err:         txErr,
			Meta:        txn.Meta,
		})
	}

	return block, nil
}

func (c *client) GetTransaction(sig Signature, commitment Commitment) (ConfirmedTransaction, error) {
	type rpcResponse struct {
		Slot        uint64           `json:"slot"`
		BlockTime   *int64           `json:"blockTime"`
		Transaction []string         `json:"transaction"` // [val, encoding]
		Meta        *TransactionMeta `json:"meta"`
	}

	config := struct {
		Commitment                     string `json:"commitment"`
		Encoding                       string `json:"encoding"`
		MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	}{
		Commitment:                     commitment.Commitment,
		Encoding:                       "base64",
		MaxSupportedTransactionVersion: 0,
	}

	var resp *rpcResponse
	if err := c.call(&resp, "getTransaction", base58.Encode(sig[:]), config); err != nil {
		return ConfirmedTransaction{}, errors.Wrap(err, "getTransaction() failed to send request")
	}

	if resp == nil {
		return ConfirmedTransaction{}, ErrSignatureNotFound
	}

	txn := ConfirmedTransaction{
		Slot: resp.Slot,
		Meta: resp.Meta,
	}

	if resp.BlockTime != nil {
		txTime := time.Unix(*resp.BlockTime, 0)
		txn.BlockTime = &txTime
	}

	var err error
	if txn.Transaction, err = decodeTransaction(resp.Transaction); err != nil {
		return txn, err
	}

	if resp.Meta != nil {
		txn.Err, err = ParseTransactionError(resp.Meta.Err)
		if err != nil {
			return txn, errors.Wrap(err, "failed to parse transaction result")
		}
	}

	return txn, nil
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp rpcResponse
	if err := c.call(&resp, "getBalance", base58.Encode(account[:]), CommitmentProcessed); err != nil {
		jsonRPCErr, ok := err.(*jsonrpc.RPCError)
		if ok && jsonRPCErr.Code == invalidParamCode {
			return 0, ErrNoBalance
		}

		return 0, errors.Wrapf(err, "getBalance() failed to send request")
	}

	switch balance := resp.Value.(type) {
	case float64:
		return uint64(balance), nil
	case json.Number:
		v, err := balance.Int64()
		if err != nil {
			return 0, errors.Wrap(err, "invalid balance in response")
		}
		return uint64(v), nil
	}

	return 0, errors.Errorf("invalid value in response")
}

func (c *client) SubmitTransaction(raw []byte, commitment Commitment) (Signature, error) {
	var encoded EncodedTransaction
	if err := encoded.Unmarshal(raw); err != nil {
		return Signature{}, errors.Wrap(err, "invalid transaction")
	}
	sig := encoded.Signature()

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		SkipPreflight:       true,
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", base64.StdEncoding.EncodeToString(raw), config)
	if err != nil {
		jsonRPCErr, ok := err.(*jsonrpc.RPCError)
		if !ok {
			return sig, errors.Wrapf(err, "sendTransaction() failed to send request")
		}

		txResult, parseErr := ParseRPCError(jsonRPCErr)
		if parseErr != nil {
			return sig, err
		}

		if txResult != nil {
			c.log.WithError(txResult).WithField("signature", sig.String()).Debug("transaction rejected")
			return sig, txResult
		}

		return sig, err
	}

	return sig, nil
}

func (c *client) SimulateTransaction(raw []byte, commitment Commitment) (*SimulationResult, error) {
	config := struct {
		Encoding   string `json:"encoding"`
		Commitment string `json:"commitment"`
		SigVerify  bool   `json:"sigVerify"`
	}{
		Encoding:   "base64",
		Commitment: commitment.Commitment,
	}

	var resp struct {
		Value *struct {
			Err           interface{} `json:"err"`
			Logs          []string    `json:"logs"`
			UnitsConsumed *uint64     `json:"unitsConsumed"`
		} `json:"value"`
	}
	if err := c.call(&resp, "simulateTransaction", base64.StdEncoding.EncodeToString(raw), config); err != nil {
		return nil, errors.Wrap(err, "simulateTransaction() failed to send request")
	}

	if resp.Value == nil {
		return nil, errors.New("empty simulation result")
	}

	txErr, err := ParseTransactionError(resp.Value.Err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse simulation error")
	}

	result := &SimulationResult{
		Err:  txErr,
		Logs: resp.Value.Logs,
	}
	if resp.Value.UnitsConsumed != nil {
		result.UnitsConsumed = *resp.Value.UnitsConsumed
	}
	return result, nil
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (accountInfo AccountInfo, err error) {
	type rpcResponse struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}

	rpcConfig := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account[:]), rpcConfig); err != nil {
		return accountInfo, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return accountInfo, ErrNoAccountInfo
	}

	accountInfo.Owner, err = base58.Decode(resp.Value.Owner)
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base58 encoded owner")
	}

	if len(resp.Value.Data) == 0 {
		return accountInfo, errors.New("missing account data")
	}
	accountInfo.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base64 encoded data")
	}

	accountInfo.Lamports = resp.Value.Lamports
	accountInfo.Executable = resp.Value.Executable

	return accountInfo, nil
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var sigStr string
	if err := c.call(&sigStr, "requestAirdrop", base58.Encode(account[:]), lamports, commitment); err != nil {
		return Signature{}, errors.Wrapf(err, "requestAirdrop() failed to send request")
	}

	sigBytes, err := base58.Decode(sigStr)
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}

	var sig Signature
	copy(sig[:], sigBytes)

	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}

	return sig, nil
}

func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var s *SignatureStatus
	errConfirmationsNotReached := errors.New("confirmations not reached")
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			s = statuses[0]
			if s == nil {
				return ErrSignatureNotFound
			}

			// A failed transaction will not progress any further.
			if s.ErrorResult != nil {
				return nil
			}

			switch commitment {
			case CommitmentProcessed:
				return nil
			case CommitmentConfirmed:
				if s.Confirmed() {
					return nil
				}
			case CommitmentFinalized:
				if s.Finalized() {
					return nil
				}
			}

			return errConfirmationsNotReached
		},
		retry.RetriableErrors(ErrSignatureNotFound, errConfirmationsNotReached),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)

	return s, err
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	b58Sigs := make([]string, len(sigs))
	for i := range sigs {
		b58Sigs[i] = base58.Encode(sigs[i][:])
	}

	req := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	type signatureStatus struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *int            `json:"confirmations"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}

	type rpcResp struct {
		Context struct {
			Slot int `json:"slot"`
		} `json:"context"`
		Value []*signatureStatus `json:"value"`
	}

	var resp rpcResp
	if err := c.call(&resp, "getSignatureStatuses", b58Sigs, req); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil || i >= len(statuses) {
			continue
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}

		if len(v.Err) > 0 {
			var txError interface{}
			if err := json.Unmarshal(v.Err, &txError); err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction result")
			}

			var err error
			statuses[i].ErrorResult, err = ParseTransactionError(txError)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction result")
			}
		}
	}

	return statuses, nil
}

func decodeTransaction(raw []string) (EncodedTransaction, error) {
	var txn EncodedTransaction

	if len(raw) == 0 {
		return txn, errors.New("missing transaction data")
	}

	b, err := base64.StdEncoding.DecodeString(raw[0])
	if err != nil {
		return txn, errors.Wrap(err, "failed to decode transaction")
	}
	if err := txn.Unmarshal(b); err != nil {
		return txn, errors.Wrap(err, "failed to unmarshal transaction")
	}

	return txn, nil
}

func decodeBlockhash(s string) (hash Blockhash, err error) {
	b, err := base58.Decode(s)
	if err != nil {
		return hash, err
	}
	if len(b) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length: %d", len(b))
	}

	copy(hash[:], b)
	return hash, nil
}
