package algo

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

// PreparedStatement is spec.md §4.8's prepare() result: the server-
// assigned id plus the parameter and result column metadata needed to
// validate and encode a later execute().
type PreparedStatement struct {
	StatementID uint32
	Params      []value.Field
	Columns     []value.Field
	Warnings    uint16
}

type prepareState int

const (
	prSendCommand prepareState = iota
	prAwaitHead
	prReadParamDefs
	prSkipParamEOF
	prReadColumnDefs
	prSkipColumnEOF
	prDone
)

// PrepareAlgo drives spec.md §4.8's prepare(sql): write COM_STMT_PREPARE,
// read the header (statement id, column count C, parameter count P,
// warning count), then P parameter-definition packets and C
// column-definition packets.
type PrepareAlgo struct {
	ch               *Channel
	sql              string
	metadataMode     value.MetadataMode
	usesDeprecateEOF bool

	state  prepareState
	head   protocol.StmtPrepareResponse
	params []value.Field
	cols   []value.Field
	remain int
}

func NewPrepareAlgo(ch *Channel, sql string, mode value.MetadataMode) *PrepareAlgo {
	return &PrepareAlgo{ch: ch, sql: sql, metadataMode: mode, usesDeprecateEOF: true, state: prSendCommand}
}

func (a *PrepareAlgo) WithoutDeprecateEOF() *PrepareAlgo {
	a.usesDeprecateEOF = false
	return a
}

// Result returns the prepared statement; valid once Resume has
// returned ActionDone with a nil error.
func (a *PrepareAlgo) Result() PreparedStatement {
	return PreparedStatement{
		StatementID: a.head.StatementID,
		Params:      a.params,
		Columns:     a.cols,
		Warnings:    a.head.Warnings,
	}
}

func (a *PrepareAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}

	switch a.state {
	case prSendCommand:
		wire := a.ch.BeginCommand(protocol.EncodeComStmtPrepare(a.sql))
		a.state = prAwaitHead
		return write(wire)
	case prAwaitHead:
		return a.awaitHead(n)
	case prReadParamDefs:
		return a.readParamDefs(n)
	case prSkipParamEOF:
		return a.skipEOF(n, a.startColumnDefs)
	case prReadColumnDefs:
		return a.readColumnDefs(n)
	case prSkipColumnEOF:
		return a.skipEOF(n, a.finish)
	default:
		return doneOK()
	}
}

func (a *PrepareAlgo) awaitHead(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	if len(payload) > 0 && payload[0] == 0xff {
		diag, derr := protocol.DecodeERRPacket(payload)
		if derr != nil {
			return doneErr(derr)
		}
		return doneErr(gomysql.NewServerError(diag))
	}

	head, herr := protocol.DecodeStmtPrepareResponse(payload)
	if herr != nil {
		return doneErr(herr)
	}
	a.head = head
	a.params = make([]value.Field, 0, head.ParamCount)
	a.cols = make([]value.Field, 0, head.ColumnCount)

	if head.ParamCount > 0 {
		a.remain = int(head.ParamCount)
		a.state = prReadParamDefs
		return read()
	}
	return a.afterParamDefs()
}

func (a *PrepareAlgo) readParamDefs(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}
	f, derr := protocol.DecodeColumnDefinition(payload, a.metadataMode)
	if derr != nil {
		return doneErr(derr)
	}
	a.params = append(a.params, f)
	a.remain--
	if a.remain > 0 {
		return read()
	}
	return a.afterParamDefs()
}

func (a *PrepareAlgo) afterParamDefs() Action {
	if a.head.ParamCount > 0 && !a.usesDeprecateEOF {
		a.state = prSkipParamEOF
		return read()
	}
	return a.startColumnDefs()
}

func (a *PrepareAlgo) startColumnDefs() Action {
	if a.head.ColumnCount > 0 {
		a.remain = int(a.head.ColumnCount)
		a.state = prReadColumnDefs
		return read()
	}
	return a.finish()
}

func (a *PrepareAlgo) readColumnDefs(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}
	f, derr := protocol.DecodeColumnDefinition(payload, a.metadataMode)
	if derr != nil {
		return doneErr(derr)
	}
	a.cols = append(a.cols, f)
	a.remain--
	if a.remain > 0 {
		return read()
	}
	if !a.usesDeprecateEOF {
		a.state = prSkipColumnEOF
		return read()
	}
	return a.finish()
}

func (a *PrepareAlgo) skipEOF(n int, next func() Action) Action {
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
	return next()
}

func (a *PrepareAlgo) finish() Action {
	a.state = prDone
	return doneOK()
}
