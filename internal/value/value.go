// Package value implements spec.md §3's data model: the tagged Value
// union, column Field metadata, Row and Resultset, plus the text and
// binary (de)serializers of §4.4 that translate between wire bytes and
// Values by dispatching on the column's protocol field type.
package value

import "fmt"

// Kind tags which variant of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindInt64
	KindUint64
	KindString
	KindFloat32
	KindFloat64
	KindDate
	KindDateTime
	KindTime
)

// Date is a calendar date as carried on the wire; spec.md §4.4 notes
// MySQL "zero" dates (e.g. 0000-00-00) are preserved as-is and are not
// calendar-validated by this layer.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

// DateTime extends Date with a time-of-day component.
type DateTime struct {
	Date
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

// Time is a signed microsecond interval, bounded by ±839h per spec.md
// §4.4's binary TIME encoding.
type Time struct {
	Negative    bool
	Days        uint32
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

// Value is the tagged union of spec.md §3: {null, int64, uint64,
// string-bytes, float32, float64, date, datetime, time-interval}.
// String is raw bytes — charset interpretation is external to this
// package, per spec.md §3.
type Value struct {
	kind     Kind
	i64      int64
	u64      uint64
	str      []byte
	f32      float32
	f64      float64
	date     Date
	datetime DateTime
	time     Time
}

func Null() Value                    { return Value{kind: KindNull} }
func Int64(v int64) Value            { return Value{kind: KindInt64, i64: v} }
func Uint64(v uint64) Value          { return Value{kind: KindUint64, u64: v} }
func String(v []byte) Value          { return Value{kind: KindString, str: v} }
func Float32Val(v float32) Value     { return Value{kind: KindFloat32, f32: v} }
func Float64Val(v float64) Value     { return Value{kind: KindFloat64, f64: v} }
func DateVal(v Date) Value           { return Value{kind: KindDate, date: v} }
func DateTimeVal(v DateTime) Value   { return Value{kind: KindDateTime, datetime: v} }
func TimeVal(v Time) Value           { return Value{kind: KindTime, time: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the int64 payload; valid only when Kind() == KindInt64.
func (v Value) Int64() int64 { return v.i64 }

// Uint64 returns the uint64 payload; valid only when Kind() == KindUint64.
func (v Value) Uint64() uint64 { return v.u64 }

// StringBytes returns the raw byte payload; valid only when
// Kind() == KindString.
func (v Value) StringBytes() []byte { return v.str }

func (v Value) Float32() float32 { return v.f32 }
func (v Value) Float64() float64 { return v.f64 }
func (v Value) Date() Date       { return v.date }
func (v Value) DateTime() DateTime { return v.datetime }
func (v Value) Time() Time       { return v.time }

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindUint64:
		return fmt.Sprintf("%d", v.u64)
	case KindString:
		return string(v.str)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f32)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f64)
	case KindDate:
		return fmt.Sprintf("%04d-%02d-%02d", v.date.Year, v.date.Month, v.date.Day)
	case KindDateTime:
		d := v.datetime
		if d.Microsecond != 0 {
			return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
				d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Microsecond)
		}
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
			d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
	case KindTime:
		t := v.time
		sign := ""
		if t.Negative {
			sign = "-"
		}
		totalHours := t.Days*24 + uint32(t.Hour)
		if t.Microsecond != 0 {
			return fmt.Sprintf("%s%03d:%02d:%02d.%06d", sign, totalHours, t.Minute, t.Second, t.Microsecond)
		}
		return fmt.Sprintf("%s%03d:%02d:%02d", sign, totalHours, t.Minute, t.Second)
	default:
		return "<invalid>"
	}
}
