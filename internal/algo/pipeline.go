package algo

import "github.com/dbbouncer/gomysql/internal/protocol"

// PipelineHead is one stage's read-resultset-head outcome (spec.md
// §4.7's head dispatch, reused here since a pipelined stage is read no
// further than its head): either an OK/ERR-terminated command with no
// rows, or a resultset whose ColumnCount columns the caller reads
// afterward via the ordinary execute/read-rows algorithms.
type PipelineHead struct {
	OK          *protocol.OKPacket
	ColumnCount uint64
}

type pipelineState int

const (
	plSendAll pipelineState = iota
	plAwaitHead
	plDone
)

// PipelineAlgo sequences N already-serialized command payloads
// back-to-back onto the wire before reading any response, then reads N
// resultset-heads in submission order (SPEC_FULL's pipeline addition;
// spec.md §2 names "pipeline" among the sans-I/O algorithms without a
// dedicated subsection, grounded on Boost.MySQL's pipeline.hpp shape:
// batch the requests, read the replies in order).
type PipelineAlgo struct {
	ch       *Channel
	commands [][]byte

	state   pipelineState
	heads   []PipelineHead
	pending int
	// replySeqs[i] is the sequence number of command i's first reply
	// frame; each command is framed from sequence 0.
	replySeqs []uint8
}

func NewPipelineAlgo(ch *Channel, commands [][]byte) *PipelineAlgo {
	return &PipelineAlgo{ch: ch, commands: commands, state: plSendAll}
}

// Heads returns each stage's resultset head, in submission order;
// valid once Resume has returned ActionDone with a nil error.
func (a *PipelineAlgo) Heads() []PipelineHead { return a.heads }

func (a *PipelineAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}

	switch a.state {
	case plSendAll:
		return a.sendAll()
	case plAwaitHead:
		return a.awaitHead(n)
	default:
		return doneOK()
	}
}

func (a *PipelineAlgo) sendAll() Action {
	var wire []byte
	a.replySeqs = a.replySeqs[:0]
	for _, cmd := range a.commands {
		wire = append(wire, a.ch.BeginCommand(cmd)...)
		a.replySeqs = append(a.replySeqs, a.ch.Reader.Sequence())
	}

	a.pending = len(a.commands)
	if a.pending == 0 {
		a.state = plDone
		return doneOK()
	}
	a.ch.Reader.SetSequence(a.replySeqs[0])
	a.state = plAwaitHead
	return write(wire)
}

func (a *PipelineAlgo) awaitHead(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	ok, colCount, derr := protocol.DispatchGenericResponse(payload)
	if derr != nil {
		return doneErr(derr)
	}
	a.heads = append(a.heads, PipelineHead{OK: ok, ColumnCount: colCount})
	a.pending--
	if a.pending > 0 {
		a.ch.Reader.SetSequence(a.replySeqs[len(a.heads)])
		return read()
	}
	a.state = plDone
	return doneOK()
}
