package protocol

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
)

const (
	headerOK  = 0x00
	headerEOF = 0xfe
	headerERR = 0xff
	// headerLocalInfile marks a LOCAL INFILE request, unsupported by
	// this core (spec.md §4.7 read-resultset-head).
	headerLocalInfile = 0xfb
)

// OKPacket is Protocol::OK_Packet (spec.md §4.3).
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  ServerStatusFlags
	Warnings     uint16
	Info         string
}

// DecodeOKPacket parses an OK packet. The trailing info/session-track
// blocks are parsed permissively: absence of enough bytes to read them
// is not an error, matching spec.md §4.3's "parsed permissively" note.
func DecodeOKPacket(payload []byte) (OKPacket, error) {
	r := codec.NewReader(payload)
	if _, err := r.Uint8(); err != nil { // 0x00 header
		return OKPacket{}, err
	}
	var p OKPacket
	affected, err := r.LengthEncodedInt()
	if err != nil {
		return OKPacket{}, err
	}
	p.AffectedRows = affected

	lastInsertID, err := r.LengthEncodedInt()
	if err != nil {
		return OKPacket{}, err
	}
	p.LastInsertID = lastInsertID

	status, err := r.Uint16()
	if err != nil {
		return OKPacket{}, err
	}
	p.StatusFlags = ServerStatusFlags(status)

	warnings, err := r.Uint16()
	if err != nil {
		return OKPacket{}, err
	}
	p.Warnings = warnings

	if r.Len() > 0 {
		p.Info = string(r.EOFString())
	}
	return p, nil
}

// EncodeOKPacket serializes an OK packet (used by tests to build
// canned server replies).
func EncodeOKPacket(p OKPacket) []byte {
	w := codec.NewWriter(16 + len(p.Info))
	w.PutUint8(headerOK)
	w.PutLengthEncodedInt(p.AffectedRows)
	w.PutLengthEncodedInt(p.LastInsertID)
	w.PutUint16(uint16(p.StatusFlags))
	w.PutUint16(p.Warnings)
	w.PutEOFString([]byte(p.Info))
	return w.Bytes()
}

// EOFPacket is Protocol::EOF_Packet (spec.md §4.3), only valid when
// the packet's total length is < 9 bytes.
type EOFPacket struct {
	Warnings    uint16
	StatusFlags ServerStatusFlags
}

func DecodeEOFPacket(payload []byte) (EOFPacket, error) {
	r := codec.NewReader(payload)
	if _, err := r.Uint8(); err != nil { // 0xfe header
		return EOFPacket{}, err
	}
	warnings, err := r.Uint16()
	if err != nil {
		return EOFPacket{}, err
	}
	status, err := r.Uint16()
	if err != nil {
		return EOFPacket{}, err
	}
	return EOFPacket{Warnings: warnings, StatusFlags: ServerStatusFlags(status)}, nil
}

func EncodeEOFPacket(p EOFPacket) []byte {
	w := codec.NewWriter(5)
	w.PutUint8(headerEOF)
	w.PutUint16(p.Warnings)
	w.PutUint16(uint16(p.StatusFlags))
	return w.Bytes()
}

// IsEOFPacket reports whether payload is a well-formed EOF marker:
// leading 0xfe and total length under 9 bytes, distinguishing it from
// a >=9-byte string field that happens to start with 0xfe in the
// non-DEPRECATE_EOF row protocol.
func IsEOFPacket(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerEOF && len(payload) < 9
}

// DecodeERRPacket parses Protocol::ERR_Packet into server diagnostics.
func DecodeERRPacket(payload []byte) (gomysql.ServerDiagnostics, error) {
	r := codec.NewReader(payload)
	if _, err := r.Uint8(); err != nil { // 0xff header
		return gomysql.ServerDiagnostics{}, err
	}
	code, err := r.Uint16()
	if err != nil {
		return gomysql.ServerDiagnostics{}, err
	}
	if _, err := r.Uint8(); err != nil { // '#' sql-state marker
		return gomysql.ServerDiagnostics{}, err
	}
	state, err := r.FixedString(5)
	if err != nil {
		return gomysql.ServerDiagnostics{}, err
	}
	msg := r.EOFString()
	return gomysql.ServerDiagnostics{Code: code, SQLState: string(state), Message: string(msg)}, nil
}

func EncodeERRPacket(d gomysql.ServerDiagnostics) []byte {
	w := codec.NewWriter(9 + len(d.Message))
	w.PutUint8(headerERR)
	w.PutUint16(d.Code)
	w.PutUint8('#')
	state := d.SQLState
	if len(state) > 5 {
		state = state[:5]
	}
	for len(state) < 5 {
		state += "0"
	}
	w.PutFixedString([]byte(state))
	w.PutEOFString([]byte(d.Message))
	return w.Bytes()
}

// DispatchGenericResponse classifies a command-phase response packet
// by its leading byte (spec.md §4.7 read-resultset-head), returning an
// *gomysql.Error for ERR and LOCAL INFILE, an OKPacket for OK, or
// ok=nil with the length-encoded column count for a resultset head.
func DispatchGenericResponse(payload []byte) (ok *OKPacket, columnCount uint64, err error) {
	if len(payload) == 0 {
		return nil, 0, gomysql.New(gomysql.KindIncompleteMessage, nil)
	}
	switch payload[0] {
	case headerERR:
		diag, derr := DecodeERRPacket(payload)
		if derr != nil {
			return nil, 0, derr
		}
		return nil, 0, gomysql.NewServerError(diag)
	case headerOK:
		p, perr := DecodeOKPacket(payload)
		if perr != nil {
			return nil, 0, perr
		}
		return &p, 0, nil
	case headerLocalInfile:
		return nil, 0, gomysql.New(gomysql.KindProtocolValueError, nil)
	default:
		r := codec.NewReader(payload)
		n, lerr := r.LengthEncodedInt()
		if lerr != nil {
			return nil, 0, lerr
		}
		return nil, n, nil
	}
}
