package algo

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

type executeState int

const (
	exSendCommand executeState = iota
	exAwaitHead
	exReadColumnDefs
	exSkipColumnEOF
	exReadRows
	exDone
)

// ExecuteAlgo drives spec.md §4.7's execute(kind, payload, out_processor)
// to completion: send the command, then loop read-resultset-head ->
// read-rows until no further resultset chains via more-results.
type ExecuteAlgo struct {
	ch      *Channel
	command []byte
	cursor  resultsetCursor

	state      executeState
	resultsets []*value.Resultset
	failed     error
}

// NewQueryAlgo builds the text-protocol execute for COM_QUERY.
func NewQueryAlgo(ch *Channel, sql string, mode value.MetadataMode) *ExecuteAlgo {
	return &ExecuteAlgo{
		ch:      ch,
		command: protocol.EncodeComQuery(sql),
		cursor:  resultsetCursor{encoding: encodingText, metadataMode: mode, usesDeprecateEOF: true},
		state:   exSendCommand,
	}
}

// NewStmtExecuteAlgo builds the binary-protocol execute for
// COM_STMT_EXECUTE. A parameter-count mismatch is a client-side
// precondition violation (spec.md §4.8) reported without touching the
// transport.
func NewStmtExecuteAlgo(ch *Channel, stmtID uint32, expectedParamCount int, params []value.Value, unsigned []bool, mode value.MetadataMode) *ExecuteAlgo {
	if len(params) != expectedParamCount {
		err := gomysql.Newf(gomysql.KindWrongNumParams, "statement expects %d parameters, got %d", expectedParamCount, len(params))
		return &ExecuteAlgo{state: exDone, failed: err}
	}

	w := codec.NewWriter(10 + 2*len(params))
	w.PutFixedString(protocol.EncodeComStmtExecuteHeader(stmtID))
	value.EncodeBinaryParams(w, params, unsigned)

	return &ExecuteAlgo{
		ch:      ch,
		command: w.Bytes(),
		cursor:  resultsetCursor{encoding: encodingBinary, metadataMode: mode, usesDeprecateEOF: true},
		state:   exSendCommand,
	}
}

// WithoutDeprecateEOF marks the algo as talking to a server that did
// not negotiate DEPRECATE_EOF, so column definitions and rows are
// bounded by legacy EOF packets instead of the terminal OK.
func (a *ExecuteAlgo) WithoutDeprecateEOF() *ExecuteAlgo {
	a.cursor.usesDeprecateEOF = false
	return a
}

// Resultsets returns every resultset collected so far; valid once
// Resume has returned ActionDone with a nil error.
func (a *ExecuteAlgo) Resultsets() []*value.Resultset { return a.resultsets }

func (a *ExecuteAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}
	if a.failed != nil {
		return doneErr(a.failed)
	}

	switch a.state {
	case exSendCommand:
		wire := a.ch.BeginCommand(a.command)
		a.state = exAwaitHead
		return write(wire)
	case exAwaitHead:
		return a.awaitHead(n)
	case exReadColumnDefs:
		return a.readColumnDefs(n)
	case exSkipColumnEOF:
		return a.skipColumnEOF(n)
	case exReadRows:
		return a.readRows(n)
	default:
		return doneOK()
	}
}

func (a *ExecuteAlgo) awaitHead(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	empty, wantCols, derr := a.cursor.decodeHead(payload)
	if derr != nil {
		return doneErr(derr)
	}
	if !wantCols {
		a.resultsets = append(a.resultsets, empty)
		if empty.HasMoreResults {
			a.state = exAwaitHead
			return read()
		}
		a.state = exDone
		return doneOK()
	}

	if a.cursor.colsRemaining == 0 {
		return a.afterColumnDefs()
	}
	a.state = exReadColumnDefs
	return read()
}

func (a *ExecuteAlgo) readColumnDefs(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	more, derr := a.cursor.addColumnDef(payload)
	if derr != nil {
		return doneErr(derr)
	}
	if more {
		return read()
	}
	return a.afterColumnDefs()
}

func (a *ExecuteAlgo) afterColumnDefs() Action {
	a.cursor.finishColumnDefs()
	if !a.cursor.usesDeprecateEOF {
		a.state = exSkipColumnEOF
		return read()
	}
	a.state = exReadRows
	return read()
}

func (a *ExecuteAlgo) skipColumnEOF(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}
	if _, derr := protocol.DecodeEOFPacket(payload); derr != nil {
		return doneErr(derr)
	}
	a.state = exReadRows
	return read()
}

func (a *ExecuteAlgo) readRows(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	if a.cursor.isRowTerminator(payload) {
		rs, terr := a.cursor.finishRows(payload)
		if terr != nil {
			return doneErr(terr)
		}
		a.resultsets = append(a.resultsets, rs)
		if rs.HasMoreResults {
			a.cursor.rs = nil
			a.state = exAwaitHead
			return read()
		}
		a.state = exDone
		return doneOK()
	}

	if derr := a.cursor.decodeRow(payload); derr != nil {
		return doneErr(derr)
	}
	return read()
}
