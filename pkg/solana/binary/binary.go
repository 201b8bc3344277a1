// Package binary encodes and decodes the fixed, little endian account and
// instruction layouts used by on-chain programs.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a layout extends past the end of the data.
var ErrShortBuffer = errors.New("binary: short buffer")

const keySize = ed25519.PublicKeySize

// Encoder writes fields sequentially into a fixed size buffer.
type Encoder struct {
	buf    []byte
	offset int
}

// NewEncoder returns an Encoder over a zeroed buffer of size bytes.
func NewEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, size)}
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Offset returns the position of the next field.
func (e *Encoder) Offset() int {
	return e.offset
}

// Seek moves to an absolute offset, leaving skipped bytes zeroed.
func (e *Encoder) Seek(offset int) {
	e.offset = offset
}

func (e *Encoder) PutUint8(v uint8) {
	e.buf[e.offset] = v
	e.offset++
}

func (e *Encoder) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[e.offset:], v)
	e.offset += 4
}

func (e *Encoder) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[e.offset:], v)
	e.offset += 8
}

// PutKey32 writes a 32 byte key. Short keys are zero padded.
func (e *Encoder) PutKey32(key []byte) {
	copy(e.buf[e.offset:e.offset+keySize], key)
	e.offset += keySize
}

// PutOptionalKey32 writes an option tag of optionSize bytes followed by a
// key slot. The slot is reserved, and left zeroed, when key is empty.
func (e *Encoder) PutOptionalKey32(key []byte, optionSize int) {
	if len(key) > 0 {
		e.buf[e.offset] = 1
		copy(e.buf[e.offset+optionSize:e.offset+optionSize+keySize], key)
	}
	e.offset += optionSize + keySize
}

// Decoder reads fields sequentially from data. The first out of bounds read
// sets Err, after which every read is a no-op.
type Decoder struct {
	data   []byte
	offset int
	err    error
}

// NewDecoder returns a Decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered while decoding.
func (d *Decoder) Err() error {
	return d.err
}

// Offset returns the position of the next field.
func (d *Decoder) Offset() int {
	return d.offset
}

// Remaining returns the number of undecoded bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.offset
}

// Seek moves to an absolute offset within data.
func (d *Decoder) Seek(offset int) {
	if d.err == nil && (offset < 0 || offset > len(d.data)) {
		d.err = errors.Wrapf(ErrShortBuffer, "seek to %d of %d", offset, len(d.data))
		return
	}
	d.offset = offset
}

func (d *Decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.Remaining() < n {
		d.err = errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, d.offset, d.Remaining())
		return nil
	}

	b := d.data[d.offset : d.offset+n]
	d.offset += n
	return b
}

func (d *Decoder) GetUint8() uint8 {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) GetUint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *Decoder) GetUint64() uint64 {
	if b := d.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// GetKey32 reads a 32 byte key into a newly allocated slice.
func (d *Decoder) GetKey32() ed25519.PublicKey {
	b := d.next(keySize)
	if b == nil {
		return nil
	}

	key := make(ed25519.PublicKey, keySize)
	copy(key, b)
	return key
}

// GetOptionalKey32 reads an option tag of optionSize bytes and a key slot.
// It returns nil when the option is not set.
func (d *Decoder) GetOptionalKey32(optionSize int) ed25519.PublicKey {
	tag := d.next(optionSize)
	key := d.GetKey32()
	if tag == nil || tag[0] != 1 {
		return nil
	}
	return key
}
