// Package codec implements the primitive wire encodings shared by every
// MySQL packet: fixed-width little-endian integers, length-encoded
// integers/strings, and the null-bitmap traits used by the binary row
// and statement-execute protocols (spec.md §4.1).
package codec

import (
	"math"

	gomysql "github.com/dbbouncer/gomysql"
)

// Reader is a cursor over a byte span. Every parse method leaves pos at
// the byte following the value on success, and leaves pos unchanged on
// failure — callers can retry a parse once more bytes have arrived.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential parsing starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Remaining returns the unread tail of the buffer without advancing.
func (r *Reader) Remaining() []byte { return r.buf[r.pos:] }

func incomplete() error { return gomysql.New(gomysql.KindIncompleteMessage, nil) }

func protoErr(msg string) error { return gomysql.Newf(gomysql.KindProtocolValueError, "%s", msg) }

func (r *Reader) need(n int) bool { return r.Len() >= n }

// Uint8 reads one unsigned byte.
func (r *Reader) Uint8() (uint8, error) {
	if !r.need(1) {
		return 0, incomplete()
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// Int8 reads one signed byte.
func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

// Uint16 reads a 2-byte little-endian unsigned integer.
func (r *Reader) Uint16() (uint16, error) {
	if !r.need(2) {
		return 0, incomplete()
	}
	v := uint16(r.buf[r.pos]) | uint16(r.buf[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

// Int16 reads a 2-byte little-endian signed integer.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Uint24 reads a 3-byte little-endian unsigned integer (used by the
// frame length field and a handful of protocol fields).
func (r *Reader) Uint24() (uint32, error) {
	if !r.need(3) {
		return 0, incomplete()
	}
	v := uint32(r.buf[r.pos]) | uint32(r.buf[r.pos+1])<<8 | uint32(r.buf[r.pos+2])<<16
	r.pos += 3
	return v, nil
}

// Uint32 reads a 4-byte little-endian unsigned integer.
func (r *Reader) Uint32() (uint32, error) {
	if !r.need(4) {
		return 0, incomplete()
	}
	v := uint32(r.buf[r.pos]) | uint32(r.buf[r.pos+1])<<8 |
		uint32(r.buf[r.pos+2])<<16 | uint32(r.buf[r.pos+3])<<24
	r.pos += 4
	return v, nil
}

// Int32 reads a 4-byte little-endian signed integer.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Uint48 reads a 6-byte little-endian unsigned integer.
func (r *Reader) Uint48() (uint64, error) {
	if !r.need(6) {
		return 0, incomplete()
	}
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(r.buf[r.pos+i])
	}
	r.pos += 6
	return v, nil
}

// Uint64 reads an 8-byte little-endian unsigned integer.
func (r *Reader) Uint64() (uint64, error) {
	if !r.need(8) {
		return 0, incomplete()
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(r.buf[r.pos+i])
	}
	r.pos += 8
	return v, nil
}

// Int64 reads an 8-byte little-endian signed integer.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Float32 reads a 4-byte IEEE-754 little-endian float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Float64 reads an 8-byte IEEE-754 little-endian float.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// LengthEncodedIntNull is the sentinel LengthEncodedInt returns when the
// lenenc-int encodes SQL NULL (leading byte 0xfb) rather than a value.
const LengthEncodedIntNull = ^uint64(0)

// LengthEncodedInt parses MySQL's length-encoded integer: the first
// byte selects a 1/3/4/9-byte width, with 0xfb reserved to mean NULL
// (only valid in row contexts) and 0xff reserved and invalid.
func (r *Reader) LengthEncodedInt() (v uint64, err error) {
	save := r.pos
	defer func() {
		if err != nil {
			r.pos = save
		}
	}()
	first, err := r.Uint8()
	if err != nil {
		return 0, err
	}
	switch {
	case first < 0xfb:
		return uint64(first), nil
	case first == 0xfb:
		return LengthEncodedIntNull, nil
	case first == 0xfc:
		v, err := r.Uint16()
		return uint64(v), err
	case first == 0xfd:
		v, err := r.Uint24()
		return uint64(v), err
	case first == 0xfe:
		return r.Uint64()
	default: // 0xff
		return 0, protoErr("invalid length-encoded integer sentinel 0xff")
	}
}

// FixedString reads exactly n raw bytes.
func (r *Reader) FixedString(n int) ([]byte, error) {
	if !r.need(n) {
		return nil, incomplete()
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// NullTerminatedString reads bytes up to (and consuming) the next 0x00.
func (r *Reader) NullTerminatedString() ([]byte, error) {
	idx := -1
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, incomplete()
	}
	v := r.buf[r.pos:idx]
	r.pos = idx + 1
	return v, nil
}

// LengthEncodedString reads a lenenc-int length prefix followed by that
// many raw bytes.
func (r *Reader) LengthEncodedString() ([]byte, error) {
	save := r.pos
	n, err := r.LengthEncodedInt()
	if err != nil {
		r.pos = save
		return nil, err
	}
	if n == LengthEncodedIntNull {
		return nil, protoErr("unexpected NULL length-encoded string")
	}
	v, err := r.FixedString(int(n))
	if err != nil {
		r.pos = save
		return nil, err
	}
	return v, nil
}

// EOFString returns every remaining byte in the buffer.
func (r *Reader) EOFString() []byte {
	v := r.buf[r.pos:]
	r.pos = len(r.buf)
	return v
}

// ExpectDone fails with client/extra_bytes if unread bytes remain —
// used by parsers for fixed-shape packets (OK, ERR, greeting) after
// reading every documented field.
func (r *Reader) ExpectDone() error {
	if r.Len() != 0 {
		return gomysql.Newf(gomysql.KindExtraBytes, "%d trailing bytes", r.Len())
	}
	return nil
}
