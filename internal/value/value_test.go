package value

import (
	"bytes"
	"testing"

	"github.com/dbbouncer/gomysql/internal/codec"
)

func TestValueStringFormatting(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null(), "NULL"},
		{Int64(-42), "-42"},
		{Uint64(42), "42"},
		{String([]byte("hi")), "hi"},
		{DateVal(Date{2024, 3, 1}), "2024-03-01"},
		{DateTimeVal(DateTime{Date: Date{2024, 3, 1}, Hour: 9, Minute: 5, Second: 0}), "2024-03-01 09:05:00"},
		{DateTimeVal(DateTime{Date: Date{2024, 3, 1}, Hour: 9, Minute: 5, Second: 0, Microsecond: 500}), "2024-03-01 09:05:00.000500"},
		{TimeVal(Time{Negative: true, Days: 1, Hour: 2, Minute: 3, Second: 4}), "-026:03:04"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func textRow(fields ...[]byte) []byte {
	w := codec.NewWriter(0)
	for _, f := range fields {
		if f == nil {
			w.PutLengthEncodedIntNull()
			continue
		}
		w.PutLengthEncodedString(f)
	}
	return w.Bytes()
}

func TestDecodeTextRowTypesAndNull(t *testing.T) {
	fields := []Field{
		{Type: TypeLong},
		{Type: TypeLongLong, Flags: FlagUnsigned},
		{Type: TypeDouble},
		{Type: TypeVarchar},
		{Type: TypeDate},
		{Type: TypeDateTime},
		{Type: TypeTime},
	}
	wire := textRow(
		[]byte("-7"),
		[]byte("18446744073709551615"),
		[]byte("3.5"),
		nil,
		[]byte("2024-03-01"),
		[]byte("2024-03-01 09:05:06.000007"),
		[]byte("-026:03:04"),
	)
	r := codec.NewReader(wire)
	row, err := DecodeTextRow(r, fields)
	if err != nil {
		t.Fatal(err)
	}
	if row[0].Kind() != KindInt64 || row[0].Int64() != -7 {
		t.Fatalf("col0 = %+v", row[0])
	}
	if row[1].Kind() != KindUint64 || row[1].Uint64() != 18446744073709551615 {
		t.Fatalf("col1 = %+v", row[1])
	}
	if row[2].Kind() != KindFloat64 || row[2].Float64() != 3.5 {
		t.Fatalf("col2 = %+v", row[2])
	}
	if !row[3].IsNull() {
		t.Fatalf("col3 should be NULL, got %+v", row[3])
	}
	if row[4].String() != "2024-03-01" {
		t.Fatalf("col4 = %s", row[4])
	}
	if row[5].String() != "2024-03-01 09:05:06.000007" {
		t.Fatalf("col5 = %s", row[5])
	}
	if row[6].String() != "-026:03:04" {
		t.Fatalf("col6 = %s", row[6])
	}
	if err := r.ExpectDone(); err != nil {
		t.Fatalf("trailing bytes: %v", err)
	}
}

func TestDecodeTextRowInvalidIntIsProtocolValueError(t *testing.T) {
	fields := []Field{{Type: TypeLong}}
	wire := textRow([]byte("not-a-number"))
	_, err := DecodeTextRow(codec.NewReader(wire), fields)
	if err == nil {
		t.Fatal("expected an error")
	}
}

// TestBinaryRowRoundTrip covers spec.md §8's null-bitmap invariant and
// the binary value codec together: for every supported type, encoding
// a parameter Value and decoding it back through the row path (with an
// offset-2 bitmap, as a server row would carry) yields the original.
func TestBinaryRowRoundTrip(t *testing.T) {
	fields := []Field{
		{Type: TypeLongLong},
		{Type: TypeLongLong, Flags: FlagUnsigned},
		{Type: TypeFloat},
		{Type: TypeDouble},
		{Type: TypeVarString},
		{Type: TypeDate},
		{Type: TypeDateTime},
		{Type: TypeTime},
		{Type: TypeLongLong}, // will be NULL
	}
	values := []Value{
		Int64(-12345),
		Uint64(98765),
		Float32Val(1.5),
		Float64Val(2.25),
		String([]byte("hello")),
		DateVal(Date{Year: 2024, Month: 3, Day: 1}),
		DateTimeVal(DateTime{Date: Date{2024, 3, 1}, Hour: 9, Minute: 5, Second: 6, Microsecond: 7}),
		TimeVal(Time{Negative: true, Days: 1, Hour: 2, Minute: 3, Second: 4, Microsecond: 5}),
		Null(),
	}

	// Build a server-style row: leading 0x00, offset-2 null-bitmap, values.
	w := codec.NewWriter(0)
	w.PutUint8(0)
	bitmap := codec.NewNullBitmap(len(fields), binaryRowBitmapOffset)
	for i, v := range values {
		if v.IsNull() {
			bitmap.SetNull(i)
		}
	}
	w.PutFixedString(bitmap.Bytes())
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		encodeBinaryValue(w, v)
	}

	row, err := DecodeBinaryRow(codec.NewReader(w.Bytes()), fields)
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != len(fields) {
		t.Fatalf("row length = %d, want %d", len(row), len(fields))
	}
	for i, want := range values {
		got := row[i]
		if want.IsNull() != got.IsNull() {
			t.Fatalf("col %d: null mismatch", i)
		}
		if want.IsNull() {
			continue
		}
		if want.String() != got.String() {
			t.Fatalf("col %d: got %s want %s", i, got, want)
		}
	}
}

func TestBinaryTimeClampedToMax(t *testing.T) {
	huge := Time{Hour: 255, Days: 1000}
	w := codec.NewWriter(0)
	encodeBinaryTime(w, huge)

	fields := []Field{{Type: TypeTime}}
	headerRow := codec.NewWriter(0)
	headerRow.PutUint8(0)
	bitmap := codec.NewNullBitmap(1, binaryRowBitmapOffset)
	headerRow.PutFixedString(bitmap.Bytes())
	headerRow.PutFixedString(w.Bytes())

	row, err := DecodeBinaryRow(codec.NewReader(headerRow.Bytes()), fields)
	if err != nil {
		t.Fatal(err)
	}
	got := row[0].Time()
	totalHours := got.Days*24 + uint32(got.Hour)
	if totalHours > maxTimeHours {
		t.Fatalf("clamp failed, got %d hours", totalHours)
	}
}

func TestEncodeBinaryParamsNullBitmapOffsetZero(t *testing.T) {
	params := []Value{Int64(1), Null(), String([]byte("x"))}
	unsigned := []bool{false, false, false}
	w := codec.NewWriter(0)
	EncodeBinaryParams(w, params, unsigned)

	bitmapLen := codec.ByteCount(len(params), 0)
	bits := w.Bytes()[:bitmapLen]
	bitmap := codec.WrapNullBitmap(bits, 0)
	for i, p := range params {
		if bitmap.IsNull(i) != p.IsNull() {
			t.Fatalf("param %d null-bit mismatch", i)
		}
	}
	if !bytes.Equal(w.Bytes()[bitmapLen:bitmapLen+1], []byte{1}) {
		t.Fatalf("new-params-bound flag not set")
	}
}
