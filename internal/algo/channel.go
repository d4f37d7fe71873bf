package algo

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/frame"
)

// readChunkSize is how many bytes each ActionRead asks the transport
// to fill at a time; frame reassembly accumulates across reads.
const readChunkSize = 4096

// maxMessageSize is spec.md §5's clamp on buffer growth.
const maxMessageSize = 0x40000000

// Channel is the connection-private shared state threaded through
// every algorithm on a connection (spec.md §3: "read buffer, write
// buffer, parser state, last sequence number"). Algorithms borrow it
// for the duration of one operation; it outlives any single Algo.
type Channel struct {
	Reader *frame.Reader
	writer *frame.Writer

	scratch []byte
	accum   []byte
}

// NewChannel creates a fresh Channel for a newly-connected transport,
// expecting sequence number 0.
func NewChannel() *Channel {
	return &Channel{
		Reader:  frame.NewReader(),
		writer:  frame.NewWriter(),
		scratch: make([]byte, readChunkSize),
	}
}

// ReadBuf is the buffer the engine fills via transport.ReadSome.
func (c *Channel) ReadBuf() []byte { return c.scratch }

// BeginCommand resets framing state for a new top-level command and
// frames payload as the first outgoing packet (spec.md §4.2: sequence
// resets to 0 per command).
func (c *Channel) BeginCommand(payload []byte) []byte {
	c.Reader.ResetSequence()
	c.accum = c.accum[:0]
	wire, next := c.writer.Write(payload, 0)
	c.Reader.SetSequence(next)
	return wire
}

// WriteContinuation frames payload as the next packet in an
// already-started exchange (e.g. an auth-switch response), continuing
// from the current sequence number.
func (c *Channel) WriteContinuation(payload []byte) []byte {
	wire, next := c.writer.Write(payload, c.Reader.Sequence())
	c.Reader.SetSequence(next)
	return wire
}

// Feed appends the n bytes the engine just read into ReadBuf to the
// in-flight assembly and attempts to reassemble one complete logical
// packet.
func (c *Channel) Feed(n int) (payload []byte, done bool, err error) {
	if len(c.accum)+n > maxMessageSize {
		return nil, false, gomysql.Newf(gomysql.KindProtocolValueError, "message exceeds %d bytes", maxMessageSize)
	}
	c.accum = append(c.accum, c.scratch[:n]...)

	res, ferr := c.Reader.TryRead(c.accum)
	if ferr != nil {
		c.accum = c.accum[:0]
		return nil, false, ferr
	}
	if !res.Done {
		remaining := copy(c.accum, c.accum[res.Consumed:])
		c.accum = c.accum[:remaining]
		return nil, false, nil
	}

	out := append([]byte(nil), res.Payload...)
	remaining := copy(c.accum, c.accum[res.Consumed:])
	c.accum = c.accum[:remaining]
	return out, true, nil
}
