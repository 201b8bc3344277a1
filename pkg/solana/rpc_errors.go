package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse                   TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountLoadedTwice             TransactionErrorKey = "AccountLoadedTwice"
	TransactionErrorAccountNotFound                TransactionErrorKey = "AccountNotFound"
	TransactionErrorAlreadyProcessed               TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorBlockhashNotFound              TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorDuplicateSignature             TransactionErrorKey = "DuplicateSignature"
	TransactionErrorInstructionError               TransactionErrorKey = "InstructionError"
	TransactionErrorInsufficientFundsForFee        TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInvalidAccountIndex            TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorMissingSignatureForFee         TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSanitizeFailure                TransactionErrorKey = "SanitizeFailure"
	TransactionErrorSignatureFailure               TransactionErrorKey = "SignatureFailure"
	TransactionErrorUnsupportedVersion             TransactionErrorKey = "UnsupportedVersion"
	TransactionErrorInvalidWritableAccount         TransactionErrorKey = "InvalidWritableAccount"
	TransactionErrorAddressLookupTableNotFound     TransactionErrorKey = "AddressLookupTableNotFound"
	TransactionErrorInvalidAddressLookupTableOwner TransactionErrorKey = "InvalidAddressLookupTableOwner"
	TransactionErrorInvalidAddressLookupTableData  TransactionErrorKey = "InvalidAddressLookupTableData"
	TransactionErrorInvalidAddressLookupTableIndex TransactionErrorKey = "InvalidAddressLookupTableIndex"
)

// InstructionErrorKey is the string keys returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError             InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument          InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData   InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData       InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds        InstructionErrorKey = "InsufficientFunds"
	InstructionErrorMissingRequiredSignature InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorNotEnoughAccountKeys     InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorCustom                   InstructionErrorKey = "Custom"
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// MarshalJSON encodes the error the way RPC nodes do:
// [index, "Key"] or [index, {"Custom": code}].
func (i InstructionError) MarshalJSON() ([]byte, error) {
	var detail interface{}
	if ce := i.CustomError(); ce != nil {
		detail = map[string]int{string(InstructionErrorCustom): int(*ce)}
	} else if i.Err != nil {
		detail = i.Err.Error()
	}
	return json.Marshal([]interface{}{i.Index, detail})
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	key              TransactionErrorKey
	instructionError *InstructionError
	raw              interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		key: key,
		raw: string(key),
	}
}

func TransactionErrorFromInstructionError(err *InstructionError) *TransactionError {
	return &TransactionError{
		key:              TransactionErrorInstructionError,
		instructionError: err,
		raw:              map[string]interface{}{string(TransactionErrorInstructionError): err},
	}
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// Is matches transaction errors by key.
func (t TransactionError) Is(target error) bool {
	switch other := target.(type) {
	case *TransactionError:
		return other != nil && other.key == t.key
	case TransactionError:
		return other.key == t.key
	}
	return false
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

// ParseRPCError parses the transaction error carried by a jsonrpc.RPCError,
// as returned when preflight fails.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}

	return nil, nil
}

// ParseTransactionError parses the JSON error returned from the "err" field in various
// RPC methods and fields.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{key: TransactionErrorKey(t), raw: raw}, nil
	case map[string]interface{}:
		k, v, err := singleEntry(t)
		if err != nil {
			return &TransactionError{key: "unhandled transaction error", raw: raw}, err
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{key: TransactionErrorKey(k), raw: raw}, nil
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{key: "unhandled transaction error", raw: raw}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			key:              TransactionErrorInstructionError,
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return nil, errors.New("unhandled error type")
	}
}

func parseInstructionError(v interface{}) (e InstructionError, err error) {
	values, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}
	if len(values) != 2 {
		return e, errors.Errorf("too many entries in InstructionError tuple: %d", len(values))
	}

	if e.Index, err = parseJSONNumber(values[0]); err != nil {
		return e, err
	}

	switch t := values[1].(type) {
	case string:
		e.Err = errors.New(t)
	case map[string]interface{}:
		k, v, err := singleEntry(t)
		if err != nil {
			e.Err = errors.New("unhandled InstructionError")
			return e, err
		}

		if k != string(InstructionErrorCustom) {
			e.Err = errors.New(k)
			break
		}

		code, err := parseJSONNumber(v)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	default:
		return e, errors.Errorf("unexpected instruction error detail: %v", t)
	}

	return e, nil
}

func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("invalid error result size: %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		index, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case string:
		index, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case float64:
		return int(n), nil
	}

	return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
}
