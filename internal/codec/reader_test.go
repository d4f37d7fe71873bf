package codec

import (
	"bytes"
	"testing"

	gomysql "github.com/dbbouncer/gomysql"
)

func TestReaderFixedInts(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x00, 0x03, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	r := NewReader(buf)

	u8, err := r.Uint8()
	if err != nil || u8 != 1 {
		t.Fatalf("Uint8 = %v, %v", u8, err)
	}
	u16, err := r.Uint16()
	if err != nil || u16 != 2 {
		t.Fatalf("Uint16 = %v, %v", u16, err)
	}
	u24, err := r.Uint24()
	if err != nil || u24 != 3 {
		t.Fatalf("Uint24 = %v, %v", u24, err)
	}
	u32, err := r.Uint32()
	if err != nil || u32 != 4 {
		t.Fatalf("Uint32 = %v, %v", u32, err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected cursor exhausted, %d bytes left", r.Len())
	}
}

func TestReaderIncompleteLeavesCursorUnchanged(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, err := r.Uint32()
	if gomysql.KindOf(err) != gomysql.KindIncompleteMessage {
		t.Fatalf("expected incomplete_message, got %v", err)
	}
	if r.Pos() != 0 {
		t.Fatalf("cursor should be unchanged on failure, pos=%d", r.Pos())
	}
}

func TestLengthEncodedIntWidths(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want uint64
	}{
		{"1-byte", []byte{0x0a}, 10},
		{"null", []byte{0xfb}, LengthEncodedIntNull},
		{"u16", []byte{0xfc, 0x00, 0x01}, 256},
		{"u24", []byte{0xfd, 0x00, 0x00, 0x01}, 65536},
		{"u64", []byte{0xfe, 1, 0, 0, 0, 0, 0, 0, 0}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewReader(c.buf)
			got, err := r.LengthEncodedInt()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %d want %d", got, c.want)
			}
			if r.Len() != 0 {
				t.Fatalf("cursor not fully advanced, %d left", r.Len())
			}
		})
	}
}

func TestLengthEncodedIntInvalidSentinel(t *testing.T) {
	r := NewReader([]byte{0xff})
	_, err := r.LengthEncodedInt()
	if gomysql.KindOf(err) != gomysql.KindProtocolValueError {
		t.Fatalf("expected protocol_value_error, got %v", err)
	}
}

func TestNullTerminatedString(t *testing.T) {
	r := NewReader([]byte("hello\x00world"))
	s, err := r.NullTerminatedString()
	if err != nil {
		t.Fatal(err)
	}
	if string(s) != "hello" {
		t.Fatalf("got %q", s)
	}
	if !bytes.Equal(r.Remaining(), []byte("world")) {
		t.Fatalf("remaining = %q", r.Remaining())
	}
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.PutLengthEncodedString([]byte("hello world"))
	r := NewReader(w.Bytes())
	got, err := r.LengthEncodedString()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestRoundTripFixedInts(t *testing.T) {
	w := NewWriter(0)
	w.PutUint8(7)
	w.PutUint16(300)
	w.PutUint24(70000)
	w.PutUint32(123456789)
	w.PutUint48(1 << 40)
	w.PutUint64(1 << 60)
	w.PutFloat32(3.5)
	w.PutFloat64(-2.25)

	r := NewReader(w.Bytes())
	if v, _ := r.Uint8(); v != 7 {
		t.Fatalf("uint8 %d", v)
	}
	if v, _ := r.Uint16(); v != 300 {
		t.Fatalf("uint16 %d", v)
	}
	if v, _ := r.Uint24(); v != 70000 {
		t.Fatalf("uint24 %d", v)
	}
	if v, _ := r.Uint32(); v != 123456789 {
		t.Fatalf("uint32 %d", v)
	}
	if v, _ := r.Uint48(); v != 1<<40 {
		t.Fatalf("uint48 %d", v)
	}
	if v, _ := r.Uint64(); v != 1<<60 {
		t.Fatalf("uint64 %d", v)
	}
	if v, _ := r.Float32(); v != 3.5 {
		t.Fatalf("float32 %v", v)
	}
	if v, _ := r.Float64(); v != -2.25 {
		t.Fatalf("float64 %v", v)
	}
	if err := r.ExpectDone(); err != nil {
		t.Fatalf("expected fully consumed: %v", err)
	}
}

func TestExpectDoneFailsOnTrailingBytes(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Uint8(); err != nil {
		t.Fatal(err)
	}
	if err := r.ExpectDone(); gomysql.KindOf(err) != gomysql.KindExtraBytes {
		t.Fatalf("expected extra_bytes, got %v", err)
	}
}
