package value

import (
	"strconv"
	"strings"

	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
)

// DecodeTextRow parses one text-protocol row (spec.md §4.3/§4.4): each
// field is a length-encoded string, or the single byte 0xfb for NULL.
// The returned Row always has len(fields) values, satisfying spec.md
// §3's arity invariant even when trailing fields are NULL.
func DecodeTextRow(r *codec.Reader, fields []Field) (Row, error) {
	row := make(Row, len(fields))
	for i, f := range fields {
		peek := r.Remaining()
		if len(peek) == 0 {
			return nil, gomysql.New(gomysql.KindIncompleteMessage, nil)
		}
		if peek[0] == 0xfb {
			if _, err := r.Uint8(); err != nil {
				return nil, err
			}
			row[i] = Null()
			continue
		}
		raw, err := r.LengthEncodedString()
		if err != nil {
			return nil, err
		}
		v, err := decodeTextField(raw, f.Type, f.Flags.Unsigned())
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func decodeTextField(raw []byte, t FieldType, unsigned bool) (Value, error) {
	s := string(raw)
	switch t {
	case TypeTiny, TypeShort, TypeLong, TypeInt24, TypeLongLong, TypeYear:
		if unsigned {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return Value{}, textParseErr(s, t)
			}
			return Uint64(n), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, textParseErr(s, t)
		}
		return Int64(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, textParseErr(s, t)
		}
		return Float32Val(float32(f)), nil
	case TypeDouble, TypeDecimal, TypeNewDecimal:
		// DECIMAL is kept as string-bytes per spec.md §4.4's binary
		// table; for the text protocol both look identical on the
		// wire (ASCII), so DOUBLE alone gets numeric parsing here and
		// DECIMAL falls through to the default string case below.
		if t == TypeDouble {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, textParseErr(s, t)
			}
			return Float64Val(f), nil
		}
		return String(raw), nil
	case TypeDate:
		d, err := parseTextDate(s)
		if err != nil {
			return Value{}, err
		}
		return DateVal(d), nil
	case TypeDateTime, TypeTimestamp:
		dt, err := parseTextDateTime(s)
		if err != nil {
			return Value{}, err
		}
		return DateTimeVal(dt), nil
	case TypeTime:
		tm, err := parseTextTime(s)
		if err != nil {
			return Value{}, err
		}
		return TimeVal(tm), nil
	default:
		return String(raw), nil
	}
}

func textParseErr(s string, t FieldType) error {
	return gomysql.Newf(gomysql.KindProtocolValueError, "cannot parse %q as field type %d", s, t)
}

// parseTextDate parses "YYYY-MM-DD".
func parseTextDate(s string) (Date, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return Date{}, textParseErr(s, TypeDate)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, textParseErr(s, TypeDate)
	}
	return Date{Year: uint16(y), Month: uint8(m), Day: uint8(d)}, nil
}

// parseTextDateTime parses "YYYY-MM-DD HH:MM:SS[.ffffff]".
func parseTextDateTime(s string) (DateTime, error) {
	datePart := s
	timePart := ""
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		datePart = s[:idx]
		timePart = s[idx+1:]
	}
	d, err := parseTextDate(datePart)
	if err != nil {
		return DateTime{}, err
	}
	if timePart == "" {
		return DateTime{Date: d}, nil
	}
	hh, mm, ss, usec, err := parseTextClock(timePart)
	if err != nil {
		return DateTime{}, err
	}
	// A DATETIME's clock is always within a single day (0-23), unlike
	// TIME's [-]HHH:MM:SS range, so the int-to-uint8 narrowing is safe
	// here.
	return DateTime{Date: d, Hour: uint8(hh), Minute: mm, Second: ss, Microsecond: usec}, nil
}

// parseTextTime parses "[-]HHH:MM:SS[.ffffff]".
func parseTextTime(s string) (Time, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	hh, mm, ss, usec, err := parseTextClock(s)
	if err != nil {
		return Time{}, err
	}
	return Time{
		Negative:    neg,
		Days:        uint32(hh / 24),
		Hour:        uint8(hh % 24),
		Minute:      mm,
		Second:      ss,
		Microsecond: usec,
	}, nil
}

// parseTextClock parses the "HH:MM:SS[.ffffff]" portion shared by
// DATETIME and TIME text values. hh is returned as a plain int, not a
// byte, because TIME's hour component ranges up to 838 (spec's
// [-]HHH:MM:SS) and narrowing it here would corrupt any value with
// hours >= 256; callers that know their hour is bounded to a single
// day narrow it themselves.
func parseTextClock(s string) (hh int, mm, ss uint8, usec uint32, err error) {
	secPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		secPart = s[:idx]
		fracPart = s[idx+1:]
	}
	parts := strings.Split(secPart, ":")
	if len(parts) != 3 {
		return 0, 0, 0, 0, textParseErr(s, TypeTime)
	}
	h, e1 := strconv.Atoi(parts[0])
	m, e2 := strconv.Atoi(parts[1])
	sVal, e3 := strconv.Atoi(parts[2])
	if e1 != nil || e2 != nil || e3 != nil {
		return 0, 0, 0, 0, textParseErr(s, TypeTime)
	}
	u := uint32(0)
	if fracPart != "" {
		for len(fracPart) < 6 {
			fracPart += "0"
		}
		fracPart = fracPart[:6]
		uv, e := strconv.Atoi(fracPart)
		if e != nil {
			return 0, 0, 0, 0, textParseErr(s, TypeTime)
		}
		u = uint32(uv)
	}
	return h, uint8(m), uint8(sVal), u, nil
}
