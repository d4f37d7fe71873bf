package protocol

import (
	"github.com/dbbouncer/gomysql/internal/codec"
)

// EncodeComQuery serializes COM_QUERY(query_text).
func EncodeComQuery(query string) []byte {
	w := codec.NewWriter(1 + len(query))
	w.PutUint8(uint8(ComQuery))
	w.PutFixedString([]byte(query))
	return w.Bytes()
}

// EncodeComQuit serializes COM_QUIT.
func EncodeComQuit() []byte {
	return []byte{uint8(ComQuit)}
}

// EncodeComPing serializes COM_PING.
func EncodeComPing() []byte {
	return []byte{uint8(ComPing)}
}

// EncodeComInitDB serializes COM_INIT_DB(schema).
func EncodeComInitDB(schema string) []byte {
	w := codec.NewWriter(1 + len(schema))
	w.PutUint8(uint8(ComInitDB))
	w.PutFixedString([]byte(schema))
	return w.Bytes()
}

// comResetConnection is 0x1f, newer than the COM_* constants enumerated
// in capability.go's classic-protocol list; it has no legacy
// equivalent (the old behavior was reconnect-from-scratch).
const comResetConnection = 0x1f

// EncodeComResetConnection serializes COM_RESET_CONNECTION, used by the
// reset algorithm and by the pool's reset-on-return path (spec.md
// §4.9).
func EncodeComResetConnection() []byte {
	return []byte{comResetConnection}
}

// EncodeComStmtPrepare serializes COM_STMT_PREPARE(sql).
func EncodeComStmtPrepare(sql string) []byte {
	w := codec.NewWriter(1 + len(sql))
	w.PutUint8(uint8(ComStmtPrepare))
	w.PutFixedString([]byte(sql))
	return w.Bytes()
}

// EncodeComStmtClose serializes COM_STMT_CLOSE(statement_id). Per
// spec.md §4.8, the server sends no reply to this command.
func EncodeComStmtClose(statementID uint32) []byte {
	w := codec.NewWriter(5)
	w.PutUint8(uint8(ComStmtClose))
	w.PutUint32(statementID)
	return w.Bytes()
}

// EncodeComStmtReset serializes COM_STMT_RESET(statement_id), which
// clears any buffered long-data for the statement without destroying
// it.
func EncodeComStmtReset(statementID uint32) []byte {
	w := codec.NewWriter(5)
	w.PutUint8(uint8(ComStmtReset))
	w.PutUint32(statementID)
	return w.Bytes()
}

// EncodeComStmtExecuteHeader serializes the fixed header of
// COM_STMT_EXECUTE, ahead of the null-bitmap/params block that
// internal/value.EncodeBinaryParams appends (spec.md §4.8). flags is
// always CURSOR_TYPE_NO_CURSOR (0) in this core; it does not implement
// server-side cursors.
func EncodeComStmtExecuteHeader(statementID uint32) []byte {
	w := codec.NewWriter(10)
	w.PutUint8(uint8(ComStmtExecute))
	w.PutUint32(statementID)
	w.PutUint8(0) // cursor flags
	w.PutUint32(1) // iteration count, always 1
	return w.Bytes()
}

// StmtPrepareResponse is the header of COM_STMT_PREPARE's reply
// (spec.md §4.8): statement id, column/parameter counts and warning
// count, followed by that many column-definition / parameter-definition
// packets read separately by the prepare algorithm.
type StmtPrepareResponse struct {
	StatementID uint32
	ColumnCount uint16
	ParamCount  uint16
	Warnings    uint16
}

func DecodeStmtPrepareResponse(payload []byte) (StmtPrepareResponse, error) {
	r := codec.NewReader(payload)
	if _, err := r.Uint8(); err != nil { // 0x00 status
		return StmtPrepareResponse{}, err
	}
	var resp StmtPrepareResponse
	id, err := r.Uint32()
	if err != nil {
		return resp, err
	}
	resp.StatementID = id

	cols, err := r.Uint16()
	if err != nil {
		return resp, err
	}
	resp.ColumnCount = cols

	params, err := r.Uint16()
	if err != nil {
		return resp, err
	}
	resp.ParamCount = params

	if _, err := r.Uint8(); err != nil { // filler
		return resp, err
	}

	warnings, err := r.Uint16()
	if err != nil {
		return resp, err
	}
	resp.Warnings = warnings
	return resp, nil
}
