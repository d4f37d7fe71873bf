package codec

import "math"

// Writer accumulates the on-wire bytes of a single message payload.
// Unlike Reader it never fails: every length computed by a caller is
// already known to fit, so Writer just appends.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer, optionally pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutInt8(v int8) { w.PutUint8(uint8(v)) }

func (w *Writer) PutUint16(v uint16) {
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

func (w *Writer) PutInt16(v int16) { w.PutUint16(uint16(v)) }

func (w *Writer) PutUint24(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (w *Writer) PutUint32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint48(v uint64) {
	for i := 0; i < 6; i++ {
		w.buf = append(w.buf, byte(v>>(8*i)))
	}
}

func (w *Writer) PutUint64(v uint64) {
	for i := 0; i < 8; i++ {
		w.buf = append(w.buf, byte(v>>(8*i)))
	}
}

func (w *Writer) PutInt64(v int64) { w.PutUint64(uint64(v)) }

func (w *Writer) PutFloat32(v float32) { w.PutUint32(math.Float32bits(v)) }

func (w *Writer) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

// PutLengthEncodedInt emits v using the narrowest of the four lenenc
// widths, mirroring Reader.LengthEncodedInt's sentinel table. Values
// equal to LengthEncodedIntNull are never passed here — callers emit
// NULL with PutLengthEncodedIntNull instead.
func (w *Writer) PutLengthEncodedInt(v uint64) {
	switch {
	case v < 0xfb:
		w.PutUint8(uint8(v))
	case v <= 0xffff:
		w.PutUint8(0xfc)
		w.PutUint16(uint16(v))
	case v <= 0xffffff:
		w.PutUint8(0xfd)
		w.PutUint24(uint32(v))
	default:
		w.PutUint8(0xfe)
		w.PutUint64(v)
	}
}

// PutLengthEncodedIntNull emits the NULL sentinel (0xfb) used by the
// text row protocol for NULL fields.
func (w *Writer) PutLengthEncodedIntNull() { w.PutUint8(0xfb) }

func (w *Writer) PutFixedString(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) PutNullTerminatedString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) PutLengthEncodedString(b []byte) {
	w.PutLengthEncodedInt(uint64(len(b)))
	w.PutFixedString(b)
}

func (w *Writer) PutEOFString(b []byte) { w.buf = append(w.buf, b...) }

// PutZeros appends n zero bytes (reserved/filler fields).
func (w *Writer) PutZeros(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
