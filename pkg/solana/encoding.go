package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana/shortvec"
)

func (m *Message) Marshal() []byte {
	b := bytes.NewBuffer(nil)
	marshalBody(b, &m.MessageBody)
	return b.Bytes()
}

func (m *MessageV0) Marshal() []byte {
	b := bytes.NewBuffer(nil)

	// Version Number
	_ = b.WriteByte(versionPrefixMask)

	marshalBody(b, &m.MessageBody)

	_, _ = shortvec.EncodeLen(b, len(m.AddressTableLookups))
	for _, addressTableLookup := range m.AddressTableLookups {
		_, _ = b.Write(addressTableLookup.PublicKey)

		_, _ = shortvec.EncodeLen(b, len(addressTableLookup.WritableIndexes))
		_, _ = b.Write(addressTableLookup.WritableIndexes)

		_, _ = shortvec.EncodeLen(b, len(addressTableLookup.ReadonlyIndexes))
		_, _ = b.Write(addressTableLookup.ReadonlyIndexes)
	}

	return b.Bytes()
}

func marshalBody(b *bytes.Buffer, m *MessageBody) {
	// Header
	_ = b.WriteByte(m.Header.NumRequiredSignatures)
	_ = b.WriteByte(m.Header.NumReadonlySigned)
	_ = b.WriteByte(m.Header.NumReadonlyUnsigned)

	// Accounts
	_, _ = shortvec.EncodeLen(b, len(m.Accounts))
	for _, a := range m.Accounts {
		_, _ = b.Write(a)
	}

	// Recent Blockhash
	_, _ = b.Write(m.RecentBlockhash[:])

	// Instructions
	_, _ = shortvec.EncodeLen(b, len(m.Instructions))
	for _, i := range m.Instructions {
		_ = b.WriteByte(i.ProgramIndex)

		// Accounts
		_, _ = shortvec.EncodeLen(b, len(i.Accounts))
		_, _ = b.Write(i.Accounts)

		// Data
		_, _ = shortvec.EncodeLen(b, len(i.Data))
		_, _ = b.Write(i.Data)
	}
}

// UnmarshalMessage parses a legacy or v0 message. The input must contain
// exactly one message.
func UnmarshalMessage(b []byte) (VersionedMessage, error) {
	buf := bytes.NewBuffer(b)

	m, err := readMessage(buf)
	if err != nil {
		return nil, err
	}
	if buf.Len() > 0 {
		return nil, errors.Wrapf(ErrTrailingData, "%d bytes", buf.Len())
	}

	return m, nil
}

func (m *Message) Unmarshal(b []byte) error {
	parsed, err := UnmarshalMessage(b)
	if err != nil {
		return err
	}

	legacy, ok := parsed.(*Message)
	if !ok {
		return errors.Wrapf(ErrInvalidVersionPrefix, "expected legacy message, got %s", parsed.Version())
	}

	*m = *legacy
	return nil
}

func (m *MessageV0) Unmarshal(b []byte) error {
	parsed, err := UnmarshalMessage(b)
	if err != nil {
		return err
	}

	v0, ok := parsed.(*MessageV0)
	if !ok {
		return errors.Wrapf(ErrInvalidVersionPrefix, "expected v0 message, got %s", parsed.Version())
	}

	*m = *v0
	return nil
}

// readMessage reads a single message from buf. The first byte is either the
// legacy header's signature count, or a version prefix with the high bit set.
func readMessage(buf *bytes.Buffer) (VersionedMessage, error) {
	first, err := readByte(buf, "message prefix")
	if err != nil {
		return nil, err
	}

	if first&versionPrefixMask == 0 {
		var m Message
		m.Header.NumRequiredSignatures = first
		if err := readBody(buf, &m.MessageBody, true); err != nil {
			return nil, err
		}
		if err := validateInstructions(&m.MessageBody, len(m.Accounts)); err != nil {
			return nil, err
		}
		return &m, nil
	}

	if version := first &^ versionPrefixMask; version != 0 {
		return nil, errors.Wrapf(ErrInvalidVersionPrefix, "version %d", version)
	}

	var m MessageV0
	if err := readBody(buf, &m.MessageBody, false); err != nil {
		return nil, err
	}

	lookupLen, err := readLen(buf, "address table lookup len")
	if err != nil {
		return nil, err
	}
	m.AddressTableLookups = make([]MessageAddressTableLookup, lookupLen)
	for i := 0; i < lookupLen; i++ {
		lookup := &m.AddressTableLookups[i]

		if lookup.PublicKey, err = readBytes(buf, ed25519.PublicKeySize, "address table lookup key"); err != nil {
			return nil, errors.Wrapf(err, "lookup[%d]", i)
		}
		if lookup.WritableIndexes, err = readArray(buf, "writable indexes"); err != nil {
			return nil, errors.Wrapf(err, "lookup[%d]", i)
		}
		if lookup.ReadonlyIndexes, err = readArray(buf, "readonly indexes"); err != nil {
			return nil, errors.Wrapf(err, "lookup[%d]", i)
		}
	}

	if len(m.Accounts)+m.NumLookupAccounts() > MaxAccounts {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d accounts (max %d)", m.NumAccounts(), MaxAccounts)
	}
	if err := validateInstructions(&m.MessageBody, m.NumAccounts()); err != nil {
		return nil, err
	}

	return &m, nil
}

// readBody reads everything after the version prefix, up to the end of the
// instructions. For legacy messages the first header byte has already been
// consumed.
func readBody(buf *bytes.Buffer, m *MessageBody, isLegacy bool) (err error) {
	// Header
	if !isLegacy {
		if m.Header.NumRequiredSignatures, err = readByte(buf, "num signatures"); err != nil {
			return err
		}
	}
	if m.Header.NumReadonlySigned, err = readByte(buf, "num readonly signatures"); err != nil {
		return err
	}
	if m.Header.NumReadonlyUnsigned, err = readByte(buf, "num readonly"); err != nil {
		return err
	}

	// Accounts
	accountLen, err := readLen(buf, "account len")
	if err != nil {
		return err
	}
	if accountLen > MaxAccounts {
		return errors.Wrapf(ErrTooManyAccounts, "%d accounts (max %d)", accountLen, MaxAccounts)
	}
	if err := m.Header.validate(accountLen); err != nil {
		return err
	}
	m.Accounts = make([]ed25519.PublicKey, accountLen)
	for i := 0; i < accountLen; i++ {
		if m.Accounts[i], err = readBytes(buf, ed25519.PublicKeySize, "account"); err != nil {
			return errors.Wrapf(err, "account at index %d", i)
		}
	}

	// Recent block hash
	blockhash, err := readBytes(buf, len(m.RecentBlockhash), "recent block hash")
	if err != nil {
		return err
	}
	copy(m.RecentBlockhash[:], blockhash)

	// Instructions
	instructionLen, err := readLen(buf, "instruction len")
	if err != nil {
		return err
	}
	m.Instructions = make([]CompiledInstruction, instructionLen)
	for i := 0; i < instructionLen; i++ {
		var c CompiledInstruction

		// Program Index
		if c.ProgramIndex, err = readByte(buf, "program index"); err != nil {
			return errors.Wrapf(err, "instruction[%d]", i)
		}

		// Account Indexes
		if c.Accounts, err = readArray(buf, "accounts"); err != nil {
			return errors.Wrapf(err, "instruction[%d]", i)
		}

		// Data
		if c.Data, err = readArray(buf, "data"); err != nil {
			return errors.Wrapf(err, "instruction[%d]", i)
		}

		m.Instructions[i] = c
	}

	return nil
}

// validateInstructions checks every instruction references accounts within
// the message's index space. Programs must be static accounts.
func validateInstructions(m *MessageBody, numAccounts int) error {
	for i, c := range m.Instructions {
		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Wrapf(ErrUnknownLookupIndex, "program index out of range: %d:%d", i, c.ProgramIndex)
		}

		for _, index := range c.Accounts {
			if int(index) >= numAccounts {
				return errors.Wrapf(ErrUnknownLookupIndex, "account index out of range: %d:%d", i, index)
			}
		}
	}
	return nil
}

func readByte(buf *bytes.Buffer, what string) (byte, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return 0, errors.Wrapf(ErrTruncatedData, "failed to read %s", what)
	}
	return b, nil
}

func readLen(buf *bytes.Buffer, what string) (int, error) {
	if buf.Len() == 0 {
		return 0, errors.Wrapf(ErrTruncatedData, "failed to read %s", what)
	}

	n, consumed, err := shortvec.Decode(buf.Bytes())
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", what)
	}
	buf.Next(consumed)
	return n, nil
}

// readBytes reads exactly n bytes into a new slice.
func readBytes(buf *bytes.Buffer, n int, what string) ([]byte, error) {
	if buf.Len() < n {
		return nil, errors.Wrapf(ErrTruncatedData, "failed to read %s: need %d bytes, have %d", what, n, buf.Len())
	}

	b := make([]byte, n)
	copy(b, buf.Next(n))
	return b, nil
}

// readArray reads a compact length prefixed byte array.
func readArray(buf *bytes.Buffer, what string) ([]byte, error) {
	n, err := readLen(buf, what+" len")
	if err != nil {
		return nil, err
	}
	return readBytes(buf, n, what)
}
