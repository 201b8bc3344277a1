package compute_budget

import (
	"bytes"
	"crypto/ed25519"
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/pointer"
	"github.com/code-payments/solana-sdk-go/pkg/solana"
	"github.com/code-payments/solana-sdk-go/pkg/solana/binary"
)

// ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

var ErrInvalidLength = errors.New("invalid length")

const (
	// DefaultInstructionComputeUnitLimit is the limit granted per instruction
	// when a transaction does not set one.
	DefaultInstructionComputeUnitLimit = 200_000
	MaxComputeUnitLimit                = 1_400_000

	microLamportsPerLamport = 1_000_000
)

const (
	// nolint:varcheck,deadcode,unused
	commandRequestUnits uint8 = iota
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

// RequestHeapFrame requests a heap region of size bytes for the transaction.
func RequestHeapFrame(size uint32) solana.Instruction {
	e := binary.NewEncoder(1 + 4)
	e.PutUint8(commandRequestHeapFrame)
	e.PutUint32(size)

	return solana.NewInstruction(ProgramKey, e.Bytes())
}

func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	e := binary.NewEncoder(1 + 4)
	e.PutUint8(commandSetComputeUnitLimit)
	e.PutUint32(computeUnitLimit)

	return solana.NewInstruction(ProgramKey, e.Bytes())
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(computeUnitPrice uint64) solana.Instruction {
	e := binary.NewEncoder(1 + 8)
	e.PutUint8(commandSetComputeUnitPrice)
	e.PutUint64(computeUnitPrice)

	return solana.NewInstruction(ProgramKey, e.Bytes())
}

func ParseRequestHeapFrameIxnData(data []byte) (uint32, error) {
	d, err := decodeCommand(data, commandRequestHeapFrame, 1+4)
	if err != nil {
		return 0, err
	}
	return d.GetUint32(), nil
}

func ParseSetComputeUnitLimitIxnData(data []byte) (uint32, error) {
	d, err := decodeCommand(data, commandSetComputeUnitLimit, 1+4)
	if err != nil {
		return 0, err
	}
	return d.GetUint32(), nil
}

func ParseSetComputeUnitPriceIxnData(data []byte) (uint64, error) {
	d, err := decodeCommand(data, commandSetComputeUnitPrice, 1+8)
	if err != nil {
		return 0, err
	}
	return d.GetUint64(), nil
}

// TransactionComputeBudget is the budget requested by the compute budget
// instructions of a transaction. Unset values are nil.
type TransactionComputeBudget struct {
	HeapFrameSize    *uint32
	ComputeUnitLimit *uint32
	ComputeUnitPrice *uint64

	// instructions outside of the compute budget program
	numInstructions int
}

// EffectiveComputeUnitLimit returns the requested limit, or the runtime
// default for the transaction's instructions when none was requested.
func (b TransactionComputeBudget) EffectiveComputeUnitLimit() uint32 {
	defaultLimit := uint64(b.numInstructions) * DefaultInstructionComputeUnitLimit
	if defaultLimit > MaxComputeUnitLimit {
		defaultLimit = MaxComputeUnitLimit
	}
	return pointer.Uint32OrDefault(b.ComputeUnitLimit, uint32(defaultLimit))
}

// PriorityFee returns the prioritization fee in lamports, rounded up.
func (b TransactionComputeBudget) PriorityFee() uint64 {
	price := pointer.Uint64OrDefault(b.ComputeUnitPrice, 0)

	hi, lo := bits.Mul64(uint64(b.EffectiveComputeUnitLimit()), price)
	if hi > 0 {
		return math.MaxUint64
	}

	fee := lo / microLamportsPerLamport
	if lo%microLamportsPerLamport != 0 {
		fee++
	}
	return fee
}

// GetTransactionComputeBudget collects the compute budget requested by
// instructions. Instructions of other programs are ignored.
func GetTransactionComputeBudget(instructions []solana.Instruction) (TransactionComputeBudget, error) {
	var budget TransactionComputeBudget
	for i, ix := range instructions {
		if !bytes.Equal(ix.Program, ProgramKey) {
			budget.numInstructions++
			continue
		}
		if len(ix.Data) == 0 {
			continue
		}

		switch ix.Data[0] {
		case commandRequestHeapFrame:
			v, err := ParseRequestHeapFrameIxnData(ix.Data)
			if err != nil {
				return budget, errors.Wrapf(err, "instruction %d", i)
			}
			budget.HeapFrameSize = pointer.Uint32(v)
		case commandSetComputeUnitLimit:
			v, err := ParseSetComputeUnitLimitIxnData(ix.Data)
			if err != nil {
				return budget, errors.Wrapf(err, "instruction %d", i)
			}
			budget.ComputeUnitLimit = pointer.Uint32(v)
		case commandSetComputeUnitPrice:
			v, err := ParseSetComputeUnitPriceIxnData(ix.Data)
			if err != nil {
				return budget, errors.Wrapf(err, "instruction %d", i)
			}
			budget.ComputeUnitPrice = pointer.Uint64(v)
		}
	}
	return budget, nil
}

func decodeCommand(data []byte, command uint8, size int) (*binary.Decoder, error) {
	if len(data) != size {
		return nil, ErrInvalidLength
	}

	d := binary.NewDecoder(data)
	if d.GetUint8() != command {
		return nil, solana.ErrIncorrectInstruction
	}
	return d, nil
}
