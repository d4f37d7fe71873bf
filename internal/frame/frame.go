// Package frame implements spec.md §4.2: the MySQL packet-framing
// layer that sits below every protocol message. A frame is
// [length:u24 LE][sequence:u8][payload], chunked at 0xffffff bytes.
package frame

import (
	"encoding/binary"

	gomysql "github.com/dbbouncer/gomysql"
)

// MaxPayloadLen is the largest payload a single frame can carry; a
// logical message longer than this is split across consecutive frames.
const MaxPayloadLen = 0xffffff

const headerLen = 4

// Reader reassembles logical messages from a stream of frames,
// validating sequence numbers as it goes. It owns no I/O: callers feed
// it the transport's buffered bytes and it reports either a complete
// payload or that more bytes are needed.
type Reader struct {
	seq      uint8
	assembly []byte
}

// NewReader starts a reader expecting the next frame to carry sequence
// number 0 (a new command resets the counter per spec.md §4.2).
func NewReader() *Reader {
	return &Reader{}
}

// ResetSequence resets the expected sequence number to 0, as happens
// when a new top-level command is issued.
func (r *Reader) ResetSequence() {
	r.seq = 0
	r.assembly = r.assembly[:0]
}

// Sequence returns the next sequence number this reader expects.
func (r *Reader) Sequence() uint8 { return r.seq }

// SetSequence forces the expected next sequence number (used by the
// façade when an algorithm and an out-of-band probe interleave).
func (r *Reader) SetSequence(seq uint8) { r.seq = seq }

// FrameResult is what TryRead reports after looking at the buffered
// transport bytes.
type FrameResult struct {
	// Payload is the reassembled logical message, valid only when Done
	// is true. It is the Reader's own reassembly copy, not a view of
	// buf, so it stays valid after buf is reused.
	Payload []byte
	Done    bool
	// Consumed is the number of leading bytes of buf that were
	// consumed by complete frames; callers should discard them (e.g.
	// buffer.Next(Consumed)) regardless of Done.
	Consumed int
}

// TryRead scans buf (the transport's currently-buffered bytes, growing
// as more arrive) for as many complete frames as are available,
// reassembling them into one logical message. It returns Done=false
// with client/incomplete_message-free partial progress when buf ends
// mid-frame; the caller should read more bytes and call TryRead again
// with a buffer that still contains the unconsumed tail (buf[Consumed:]).
func (r *Reader) TryRead(buf []byte) (FrameResult, error) {
	pos := 0
	for {
		if len(buf)-pos < headerLen {
			return FrameResult{Consumed: pos, Done: false}, nil
		}
		length := int(buf[pos]) | int(buf[pos+1])<<8 | int(buf[pos+2])<<16
		seq := buf[pos+3]

		if seq != r.seq {
			err := gomysql.New(gomysql.KindSequenceNumberMismatch, nil)
			return FrameResult{Consumed: pos}, err
		}

		if len(buf)-pos < headerLen+length {
			return FrameResult{Consumed: pos, Done: false}, nil
		}

		payload := buf[pos+headerLen : pos+headerLen+length]
		r.assembly = append(r.assembly, payload...)
		r.seq++
		pos += headerLen + length

		if length < MaxPayloadLen {
			out := r.assembly
			r.assembly = nil
			return FrameResult{Payload: out, Done: true, Consumed: pos}, nil
		}
		// length == MaxPayloadLen: more frames (possibly an empty
		// trailing one) follow for this logical message.
	}
}

// Writer chunks a payload into on-wire frames starting at a given
// sequence number, per spec.md §4.2's writer contract.
type Writer struct{}

// NewWriter returns a frame Writer. Writer is stateless; the sequence
// number is threaded explicitly through Write so callers can share one
// Writer across commands.
func NewWriter() *Writer { return &Writer{} }

// Write chunks payload into frames starting at seq and returns the
// concatenated on-wire bytes plus the next sequence number to use. An
// exactly-MaxPayloadLen-multiple payload (including the zero-length
// case of a command with no payload beyond one full frame) gets an
// explicit empty trailing frame, matching spec.md §4.2.
func (w *Writer) Write(payload []byte, seq uint8) (out []byte, nextSeq uint8) {
	out = make([]byte, 0, len(payload)+headerLen*(len(payload)/MaxPayloadLen+1))
	remaining := payload
	for {
		n := len(remaining)
		if n > MaxPayloadLen {
			n = MaxPayloadLen
		}
		var hdr [headerLen]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(n)) // top byte overwritten below
		hdr[3] = seq
		out = append(out, hdr[:]...)
		out = append(out, remaining[:n]...)
		seq++
		remaining = remaining[n:]

		if n < MaxPayloadLen {
			return out, seq
		}
		if len(remaining) == 0 {
			// Exact multiple of MaxPayloadLen: emit the empty trailer.
			var trailer [headerLen]byte
			trailer[3] = seq
			out = append(out, trailer[:]...)
			seq++
			return out, seq
		}
	}
}
