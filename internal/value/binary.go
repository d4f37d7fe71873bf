package value

import (
	"github.com/dbbouncer/gomysql/internal/codec"
)

// binaryRowBitmapOffset is spec.md §4.4's offset for result-row
// null-bitmaps (as opposed to 0 for execute-parameter bitmaps).
const binaryRowBitmapOffset = 2

// DecodeBinaryRow parses one Protocol::BinaryResultsetRow (spec.md
// §4.3/§4.4): a leading 0x00, a null-bitmap sized for the offset-2
// convention, then each non-null field in the column's binary form.
func DecodeBinaryRow(r *codec.Reader, fields []Field) (Row, error) {
	if _, err := r.Uint8(); err != nil { // leading packet-header byte, always 0x00
		return nil, err
	}
	n := len(fields)
	bitmapLen := codec.ByteCount(n, binaryRowBitmapOffset)
	bits, err := r.FixedString(bitmapLen)
	if err != nil {
		return nil, err
	}
	nullBitmap := codec.WrapNullBitmap(bits, binaryRowBitmapOffset)

	row := make(Row, n)
	for i, f := range fields {
		if nullBitmap.IsNull(i) {
			row[i] = Null()
			continue
		}
		v, err := decodeBinaryField(r, f.Type, f.Flags.Unsigned())
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func decodeBinaryField(r *codec.Reader, t FieldType, unsigned bool) (Value, error) {
	switch t {
	case TypeTiny:
		b, err := r.Uint8()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint64(uint64(b)), nil
		}
		return Int64(int64(int8(b))), nil
	case TypeShort, TypeYear:
		u, err := r.Uint16()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint64(uint64(u)), nil
		}
		return Int64(int64(int16(u))), nil
	case TypeLong, TypeInt24:
		u, err := r.Uint32()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint64(uint64(u)), nil
		}
		return Int64(int64(int32(u))), nil
	case TypeLongLong:
		u, err := r.Uint64()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint64(u), nil
		}
		return Int64(int64(u)), nil
	case TypeFloat:
		f, err := r.Float32()
		if err != nil {
			return Value{}, err
		}
		return Float32Val(f), nil
	case TypeDouble:
		f, err := r.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float64Val(f), nil
	case TypeDate, TypeDateTime, TypeTimestamp, TypeDateTime2, TypeTimestamp2:
		dt, err := decodeBinaryDateTime(r)
		if err != nil {
			return Value{}, err
		}
		if t == TypeDate {
			return DateVal(dt.Date), nil
		}
		return DateTimeVal(dt), nil
	case TypeTime, TypeTime2:
		tm, err := decodeBinaryTime(r)
		if err != nil {
			return Value{}, err
		}
		return TimeVal(tm), nil
	default:
		raw, err := r.LengthEncodedString()
		if err != nil {
			return Value{}, err
		}
		return String(raw), nil
	}
}

// decodeBinaryDateTime parses the length-prefixed 0/4/7/11-byte form
// shared by DATE, DATETIME and TIMESTAMP (spec.md §4.4).
func decodeBinaryDateTime(r *codec.Reader) (DateTime, error) {
	n, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	var dt DateTime
	if n == 0 {
		return dt, nil
	}
	year, err := r.Uint16()
	if err != nil {
		return DateTime{}, err
	}
	month, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	day, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	dt.Year, dt.Month, dt.Day = year, month, day
	if n == 4 {
		return dt, nil
	}
	hour, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	minute, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	second, err := r.Uint8()
	if err != nil {
		return DateTime{}, err
	}
	dt.Hour, dt.Minute, dt.Second = hour, minute, second
	if n == 7 {
		return dt, nil
	}
	usec, err := r.Uint32()
	if err != nil {
		return DateTime{}, err
	}
	dt.Microsecond = usec
	return dt, nil
}

// decodeBinaryTime parses the length-prefixed 0/8/12-byte TIME form
// with the sign byte and day count (spec.md §4.4).
func decodeBinaryTime(r *codec.Reader) (Time, error) {
	n, err := r.Uint8()
	if err != nil {
		return Time{}, err
	}
	var t Time
	if n == 0 {
		return t, nil
	}
	neg, err := r.Uint8()
	if err != nil {
		return Time{}, err
	}
	days, err := r.Uint32()
	if err != nil {
		return Time{}, err
	}
	hour, err := r.Uint8()
	if err != nil {
		return Time{}, err
	}
	minute, err := r.Uint8()
	if err != nil {
		return Time{}, err
	}
	second, err := r.Uint8()
	if err != nil {
		return Time{}, err
	}
	t.Negative = neg != 0
	t.Days, t.Hour, t.Minute, t.Second = days, hour, minute, second
	if n == 8 {
		return clampTime(t), nil
	}
	usec, err := r.Uint32()
	if err != nil {
		return Time{}, err
	}
	t.Microsecond = usec
	return clampTime(t), nil
}

// clampTime enforces spec.md §4.4's ±839h TIME boundary on a decoded
// value, mirroring the clamp encodeBinaryTime applies on the way out;
// a conforming server never sends an out-of-range TIME, but this keeps
// decode and encode symmetric.
func clampTime(t Time) Time {
	totalHours := t.Days*24 + uint32(t.Hour)
	if totalHours <= maxTimeHours {
		return t
	}
	return Time{
		Negative: t.Negative,
		Days:     maxTimeHours / 24,
		Hour:     uint8(maxTimeHours % 24),
		Minute:   59,
		Second:   59,
	}
}

// EncodeBinaryParams appends a COM_STMT_EXECUTE parameter block per
// spec.md §4.5: a null-bitmap (offset 0), a new-params-bound flag,
// a type byte pair per parameter, then the non-null values in binary
// form. Parameter count mismatches are a client precondition violation
// caught by the caller before this is reached.
func EncodeBinaryParams(w *codec.Writer, params []Value, unsigned []bool) {
	n := len(params)
	bitmap := codec.NewNullBitmap(n, 0)
	for i, p := range params {
		if p.IsNull() {
			bitmap.SetNull(i)
		}
	}
	w.PutFixedString(bitmap.Bytes())
	w.PutUint8(1) // new-params-bound-flag

	for i, p := range params {
		typeCode, isUnsigned := binaryParamType(p, unsigned[i])
		w.PutUint8(uint8(typeCode))
		if isUnsigned {
			w.PutUint8(0x80)
		} else {
			w.PutUint8(0x00)
		}
	}
	for _, p := range params {
		if p.IsNull() {
			continue
		}
		encodeBinaryValue(w, p)
	}
}

// binaryParamType picks the wire type code for a parameter's Value
// kind. The unsigned hint sets the sign flag of a KindInt64 parameter;
// KindUint64 is always flagged unsigned and the other kinds never are.
func binaryParamType(v Value, unsignedHint bool) (FieldType, bool) {
	switch v.Kind() {
	case KindNull:
		return TypeNull, false
	case KindInt64:
		return TypeLongLong, unsignedHint
	case KindUint64:
		return TypeLongLong, true
	case KindFloat32:
		return TypeFloat, false
	case KindFloat64:
		return TypeDouble, false
	case KindDate:
		return TypeDate, false
	case KindDateTime:
		return TypeDateTime, false
	case KindTime:
		return TypeTime, false
	default:
		return TypeVarString, false
	}
}

func encodeBinaryValue(w *codec.Writer, v Value) {
	switch v.Kind() {
	case KindInt64:
		w.PutInt64(v.Int64())
	case KindUint64:
		w.PutUint64(v.Uint64())
	case KindFloat32:
		w.PutFloat32(v.Float32())
	case KindFloat64:
		w.PutFloat64(v.Float64())
	case KindDate:
		encodeBinaryDate(w, v.Date())
	case KindDateTime:
		encodeBinaryDateTime(w, v.DateTime())
	case KindTime:
		encodeBinaryTime(w, v.Time())
	default:
		w.PutLengthEncodedString(v.StringBytes())
	}
}

func encodeBinaryDate(w *codec.Writer, d Date) {
	if d == (Date{}) {
		w.PutUint8(0)
		return
	}
	w.PutUint8(4)
	w.PutUint16(d.Year)
	w.PutUint8(d.Month)
	w.PutUint8(d.Day)
}

func encodeBinaryDateTime(w *codec.Writer, dt DateTime) {
	switch {
	case dt == (DateTime{}):
		w.PutUint8(0)
	case dt.Microsecond != 0:
		w.PutUint8(11)
		w.PutUint16(dt.Year)
		w.PutUint8(dt.Month)
		w.PutUint8(dt.Day)
		w.PutUint8(dt.Hour)
		w.PutUint8(dt.Minute)
		w.PutUint8(dt.Second)
		w.PutUint32(dt.Microsecond)
	case dt.Hour != 0 || dt.Minute != 0 || dt.Second != 0:
		w.PutUint8(7)
		w.PutUint16(dt.Year)
		w.PutUint8(dt.Month)
		w.PutUint8(dt.Day)
		w.PutUint8(dt.Hour)
		w.PutUint8(dt.Minute)
		w.PutUint8(dt.Second)
	default:
		w.PutUint8(4)
		w.PutUint16(dt.Year)
		w.PutUint8(dt.Month)
		w.PutUint8(dt.Day)
	}
}

// maxTimeHours is spec.md §4.4's ±839h TIME clamp boundary.
const maxTimeHours = 838

func encodeBinaryTime(w *codec.Writer, t Time) {
	totalHours := t.Days*24 + uint32(t.Hour)
	if totalHours > maxTimeHours {
		t = Time{Negative: t.Negative, Days: maxTimeHours / 24, Hour: uint8(maxTimeHours % 24), Minute: 59, Second: 59}
	}
	switch {
	case t == (Time{}):
		w.PutUint8(0)
	case t.Microsecond != 0:
		w.PutUint8(12)
		putBinaryTimeBody(w, t)
		w.PutUint32(t.Microsecond)
	default:
		w.PutUint8(8)
		putBinaryTimeBody(w, t)
	}
}

func putBinaryTimeBody(w *codec.Writer, t Time) {
	if t.Negative {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
	w.PutUint32(t.Days)
	w.PutUint8(t.Hour)
	w.PutUint8(t.Minute)
	w.PutUint8(t.Second)
}
