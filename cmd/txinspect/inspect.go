package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/solana-sdk-go/pkg/pointer"
	"github.com/code-payments/solana-sdk-go/pkg/solana"
	address_lookup_table "github.com/code-payments/solana-sdk-go/pkg/solana/addresslookuptable"
	compute_budget "github.com/code-payments/solana-sdk-go/pkg/solana/computebudget"
	"github.com/code-payments/solana-sdk-go/pkg/solana/memo"
	"github.com/code-payments/solana-sdk-go/pkg/solana/system"
)

var errResolverRequired = errors.New("transaction uses address lookup tables, an rpc endpoint is required")

// decodeInput decodes a wire transaction. In auto mode the base64 decoding
// is only used when it parses as a transaction, since every base58 string of
// the right length is also valid base64.
func decodeInput(input, encoding string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return nil, errors.New("no transaction provided")
	}

	switch encoding {
	case encodingBase64:
		return base64.StdEncoding.DecodeString(input)
	case encodingBase58:
		return base58.Decode(input)
	}

	b64, b64Err := base64.StdEncoding.DecodeString(input)
	if b64Err == nil {
		var txn solana.EncodedTransaction
		if err := txn.Unmarshal(b64); err == nil {
			return b64, nil
		}
	}

	b58, err := base58.Decode(input)
	if err == nil {
		return b58, nil
	}
	if b64Err == nil {
		return b64, nil
	}
	return nil, errors.New("input is neither base64 nor base58")
}

type report struct {
	Version         string                  `json:"version"`
	Signatures      []string                `json:"signatures"`
	FeePayer        string                  `json:"fee_payer"`
	RecentBlockhash string                  `json:"recent_blockhash"`
	Nonce           *nonceReport            `json:"nonce,omitempty"`
	Instructions    []instructionReport     `json:"instructions"`
	PriorityFee     *uint64                 `json:"priority_fee_lamports"`
	LoadedAddresses *solana.LoadedAddresses `json:"loaded_addresses,omitempty"`

	txn    *solana.Transaction
	tables []solana.AddressLookupTable
}

type nonceReport struct {
	Value       string            `json:"value"`
	Instruction instructionReport `json:"instruction"`
}

type instructionReport struct {
	Program  string          `json:"program"`
	Accounts []accountReport `json:"accounts"`
	Data     string          `json:"data"`
	Decoded  string          `json:"decoded,omitempty"`
}

type accountReport struct {
	PublicKey  string `json:"public_key"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// inspect parses raw into a report. v0 lookups are resolved through r, which
// may be nil for transactions without lookups.
func inspect(ctx context.Context, raw []byte, r address_lookup_table.Resolver) (*report, error) {
	var encoded solana.EncodedTransaction
	if err := encoded.Unmarshal(raw); err != nil {
		return nil, err
	}

	rep := &report{
		Version: encoded.Message.Version().String(),
	}
	for _, sig := range encoded.Signatures {
		rep.Signatures = append(rep.Signatures, sig.String())
	}

	switch m := encoded.Message.(type) {
	case *solana.Message:
		txn, err := solana.Populate(m, encoded.Signatures)
		if err != nil {
			return nil, err
		}
		rep.txn = txn
	case *solana.MessageV0:
		var loaded solana.LoadedAddresses
		if len(m.AddressTableLookups) > 0 {
			if r == nil {
				return nil, errResolverRequired
			}

			var err error
			if _, loaded, err = address_lookup_table.ResolveMessage(ctx, r, m); err != nil {
				return nil, err
			}
			rep.LoadedAddresses = &loaded
		}

		txn, err := solana.PopulateV0(m, encoded.Signatures, loaded)
		if err != nil {
			return nil, err
		}
		rep.txn = &txn.Transaction
		rep.tables = txn.AddressTableLookups
	default:
		return nil, errors.Wrapf(solana.ErrInvalidVersionPrefix, "unexpected message %T", m)
	}

	rep.FeePayer = base58.Encode(rep.txn.FeePayer)
	rep.RecentBlockhash = rep.txn.RecentBlockhash.String()
	if rep.txn.NonceInformation != nil {
		rep.Nonce = &nonceReport{
			Value:       rep.txn.NonceInformation.Nonce.String(),
			Instruction: newInstructionReport(rep.txn.NonceInformation.Instruction),
		}
	}
	for _, ix := range rep.txn.Instructions {
		rep.Instructions = append(rep.Instructions, newInstructionReport(ix))
	}

	instructions := rep.txn.Instructions
	if rep.txn.NonceInformation != nil {
		instructions = append([]solana.Instruction{rep.txn.NonceInformation.Instruction}, instructions...)
	}
	if budget, err := compute_budget.GetTransactionComputeBudget(instructions); err != nil {
		logrus.StandardLogger().WithField("type", "cmd/txinspect").WithError(err).Warn("invalid compute budget, priority fee unknown")
	} else {
		rep.PriorityFee = pointer.Uint64(budget.PriorityFee())
	}

	return rep, nil
}

func newInstructionReport(ix solana.Instruction) instructionReport {
	r := instructionReport{
		Program:  base58.Encode(ix.Program),
		Accounts: make([]accountReport, len(ix.Accounts)),
		Data:     base64.StdEncoding.EncodeToString(ix.Data),
		Decoded:  describe(ix),
	}
	for i, a := range ix.Accounts {
		r.Accounts[i] = accountReport{
			PublicKey:  base58.Encode(a.PublicKey),
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		}
	}
	return r
}

// describe returns a summary of instructions of well known programs, or an
// empty string.
func describe(ix solana.Instruction) string {
	if v, err := memo.DecompileMemo(ix); err == nil {
		return fmt.Sprintf("memo %q", v.Data)
	}

	if v, err := system.DecompileTransfer(ix); err == nil {
		return fmt.Sprintf("transfer %d lamports from %s to %s", v.Lamports, base58.Encode(v.From), base58.Encode(v.To))
	}
	if v, err := system.DecompileCreateAccount(ix); err == nil {
		return fmt.Sprintf("create account %s (%d bytes, %d lamports)", base58.Encode(v.Address), v.Size, v.Lamports)
	}
	if v, err := system.DecompileAdvanceNonce(ix); err == nil {
		return fmt.Sprintf("advance nonce %s", base58.Encode(v.Nonce))
	}
	if v, err := system.DecompileWithdrawNonce(ix); err == nil {
		return fmt.Sprintf("withdraw %d lamports from nonce %s", v.Lamports, base58.Encode(v.Nonce))
	}
	if v, err := system.DecompileInitializeNonce(ix); err == nil {
		return fmt.Sprintf("initialize nonce %s", base58.Encode(v.Nonce))
	}
	if v, err := system.DecompileAuthorizeNonce(ix); err == nil {
		return fmt.Sprintf("authorize %s on nonce %s", base58.Encode(v.NewAuthority), base58.Encode(v.Nonce))
	}

	if v, err := address_lookup_table.DecompileExtend(ix); err == nil {
		return fmt.Sprintf("extend lookup table %s by %d addresses", base58.Encode(v.Table), len(v.Addresses))
	}

	budget, err := compute_budget.GetTransactionComputeBudget([]solana.Instruction{ix})
	if err != nil {
		return ""
	}
	switch {
	case budget.ComputeUnitLimit != nil:
		return fmt.Sprintf("set compute unit limit %d", *budget.ComputeUnitLimit)
	case budget.ComputeUnitPrice != nil:
		return fmt.Sprintf("set compute unit price %d", *budget.ComputeUnitPrice)
	case budget.HeapFrameSize != nil:
		return fmt.Sprintf("request heap frame %d", *budget.HeapFrameSize)
	}
	return ""
}

func (r *report) write(w io.Writer, output string) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Version: %s\n", r.Version))
	if r.tables != nil {
		txn := solana.VersionedTransaction{Transaction: *r.txn, AddressTableLookups: r.tables}
		sb.WriteString(txn.String())
	} else {
		sb.WriteString(r.txn.String())
	}

	var decoded []string
	if r.Nonce != nil && r.Nonce.Instruction.Decoded != "" {
		decoded = append(decoded, fmt.Sprintf("  Advance: %s\n", r.Nonce.Instruction.Decoded))
	}
	for i, ix := range r.Instructions {
		if ix.Decoded != "" {
			decoded = append(decoded, fmt.Sprintf("  %d: %s\n", i, ix.Decoded))
		}
	}
	if len(decoded) > 0 {
		sb.WriteString("Decoded:\n")
		sb.WriteString(strings.Join(decoded, ""))
	}
	if r.PriorityFee != nil {
		sb.WriteString(fmt.Sprintf("Priority Fee: %d lamports\n", *r.PriorityFee))
	} else {
		sb.WriteString("Priority Fee: unknown\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
