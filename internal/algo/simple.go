package algo

import (
	"github.com/dbbouncer/gomysql/internal/protocol"
)

// simpleState is shared by every algorithm that sends one command
// packet and expects a single OK/ERR reply (ping, reset,
// set-character-set). close_statement is the one exception: spec.md
// §4.8 says the server sends no reply to COM_STMT_CLOSE.
type simpleState int

const (
	smSendCommand simpleState = iota
	smAwaitReply
	smDone
)

// ReplyAlgo drives any single-command/single-OK-reply exchange:
// COM_PING, COM_RESET_CONNECTION, COM_INIT_DB (used for
// set_character_set via a synthetic "SET NAMES" in the façade, or
// directly for USE-style schema switches).
type ReplyAlgo struct {
	ch      *Channel
	command []byte
	state   simpleState
}

func newReplyAlgo(ch *Channel, command []byte) *ReplyAlgo {
	return &ReplyAlgo{ch: ch, command: command, state: smSendCommand}
}

// NewPingAlgo drives COM_PING (spec.md §4.9's health-check primitive).
func NewPingAlgo(ch *Channel) *ReplyAlgo {
	return newReplyAlgo(ch, protocol.EncodeComPing())
}

// NewResetAlgo drives COM_RESET_CONNECTION, used by reset() and by the
// pool's reset-on-return path (spec.md §4.9).
func NewResetAlgo(ch *Channel) *ReplyAlgo {
	return newReplyAlgo(ch, protocol.EncodeComResetConnection())
}

// NewSetCharacterSetAlgo drives COM_INIT_DB's sibling for character
// set changes: the façade encodes the desired collation into a
// COM_QUERY("SET NAMES ...") in practice, but the core primitive here
// is the generic single-OK exchange that both share.
func NewSetCharacterSetAlgo(ch *Channel, command []byte) *ReplyAlgo {
	return newReplyAlgo(ch, command)
}

func (a *ReplyAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}
	switch a.state {
	case smSendCommand:
		wire := a.ch.BeginCommand(a.command)
		a.state = smAwaitReply
		return write(wire)
	case smAwaitReply:
		return a.awaitReply(n)
	default:
		return doneOK()
	}
}

func (a *ReplyAlgo) awaitReply(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}
	ok, _, derr := protocol.DispatchGenericResponse(payload)
	if derr != nil {
		return doneErr(derr)
	}
	_ = ok
	a.state = smDone
	return doneOK()
}

// QuitAlgo drives COM_QUIT (spec.md's connection-lifecycle close): the
// client writes the command and tears down the transport without
// waiting for a reply.
type QuitAlgo struct {
	ch   *Channel
	sent bool
}

func NewQuitAlgo(ch *Channel) *QuitAlgo { return &QuitAlgo{ch: ch} }

func (a *QuitAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}
	if !a.sent {
		a.sent = true
		wire := a.ch.BeginCommand(protocol.EncodeComQuit())
		return write(wire)
	}
	return doneOK()
}

// CloseStmtAlgo drives COM_STMT_CLOSE, which per spec.md §4.8 gets no
// server reply: the algorithm completes as soon as the write lands.
type CloseStmtAlgo struct {
	ch   *Channel
	id   uint32
	sent bool
}

func NewCloseStmtAlgo(ch *Channel, statementID uint32) *CloseStmtAlgo {
	return &CloseStmtAlgo{ch: ch, id: statementID}
}

func (a *CloseStmtAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}
	if !a.sent {
		a.sent = true
		wire := a.ch.BeginCommand(protocol.EncodeComStmtClose(a.id))
		return write(wire)
	}
	return doneOK()
}

// StmtResetAlgo drives COM_STMT_RESET, which does get an OK/ERR reply
// (unlike close), clearing any buffered long-data for the statement.
type StmtResetAlgo = ReplyAlgo

// NewStmtResetAlgo builds the COM_STMT_RESET exchange.
func NewStmtResetAlgo(ch *Channel, statementID uint32) *StmtResetAlgo {
	return newReplyAlgo(ch, protocol.EncodeComStmtReset(statementID))
}
