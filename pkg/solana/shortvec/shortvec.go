// Package shortvec implements the compact-u16 length encoding used to prefix
// every variable length array in the transaction wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the maximum number of bytes an encoded length may occupy.
const MaxEncodedLen = 3

var (
	// ErrMalformedLength indicates the encoded length never terminated, or
	// terminated outside of the u16 range.
	ErrMalformedLength = errors.New("malformed compact length")

	// ErrLengthOverflow indicates a length that cannot be represented.
	ErrLengthOverflow = errors.Errorf("len exceeds %d", math.MaxUint16)
)

// EncodeLen encodes the specified len into the writer.
//
// If len > math.MaxUint16, an error is returned.
func EncodeLen(w io.Writer, len int) (n int, err error) {
	buf, err := AppendLen(nil, len)
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

// AppendLen appends the encoded len to dst.
func AppendLen(dst []byte, len int) ([]byte, error) {
	if len < 0 || len > math.MaxUint16 {
		return dst, ErrLengthOverflow
	}

	for {
		b := byte(len & 0x7f)
		len >>= 7
		if len == 0 {
			return append(dst, b), nil
		}
		dst = append(dst, b|0x80)
	}
}

// EncodedSize returns the number of bytes needed to encode len.
func EncodedSize(len int) int {
	switch {
	case len < 1<<7:
		return 1
	case len < 1<<14:
		return 2
	default:
		return 3
	}
}

// DecodeLen decodes a shortvec encoded len from the reader.
func DecodeLen(r io.Reader) (val int, err error) {
	var encoded [MaxEncodedLen]byte
	valBuf := make([]byte, 1)

	for i := 0; i < MaxEncodedLen; i++ {
		if _, err := io.ReadFull(r, valBuf); err != nil {
			return 0, errors.Wrap(ErrMalformedLength, err.Error())
		}

		encoded[i] = valBuf[0]
		if valBuf[0]&0x80 == 0 {
			val, _, err := Decode(encoded[:i+1])
			return val, err
		}
	}

	return 0, errors.Wrapf(ErrMalformedLength, "invalid size (max %d)", MaxEncodedLen)
}

// Decode decodes a shortvec encoded len from the start of b, returning the
// value and the number of bytes consumed.
func Decode(b []byte) (val int, n int, err error) {
	for n < MaxEncodedLen {
		if n >= len(b) {
			return 0, 0, errors.Wrap(ErrMalformedLength, "unexpected end of data")
		}

		cur := b[n]
		val |= int(cur&0x7f) << (n * 7)
		n++

		if cur&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, 0, errors.Wrapf(ErrMalformedLength, "value %d exceeds %d", val, math.MaxUint16)
			}
			if n > 1 && cur == 0 {
				return 0, 0, errors.Wrap(ErrMalformedLength, "non-canonical encoding")
			}
			return val, n, nil
		}
	}

	return 0, 0, errors.Wrapf(ErrMalformedLength, "invalid size (max %d)", MaxEncodedLen)
}
