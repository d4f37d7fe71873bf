package conn

import (
	"context"
	"errors"
	"testing"

	"github.com/dbbouncer/gomysql/engine"
	"github.com/dbbouncer/gomysql/internal/algo"
	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

// scriptedTransport feeds pre-baked frames in order, standing in for
// a real net.Conn the way engine's own tests do.
type scriptedTransport struct {
	reads   [][]byte
	readPos int
	writes  [][]byte
}

func (s *scriptedTransport) ReadSome(ctx context.Context, buf []byte) (int, error) {
	if s.readPos >= len(s.reads) {
		return 0, errors.New("scriptedTransport: no more reads scripted")
	}
	chunk := s.reads[s.readPos]
	s.readPos++
	return copy(buf, chunk), nil
}

func (s *scriptedTransport) WriteAll(ctx context.Context, data []byte) error {
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func (s *scriptedTransport) SSLHandshake(ctx context.Context) error { return nil }
func (s *scriptedTransport) SSLShutdown(ctx context.Context) error  { return nil }

func frame(payload []byte, seq uint8) []byte {
	header := []byte{byte(len(payload)), byte(len(payload) >> 8), byte(len(payload) >> 16), seq}
	return append(header, payload...)
}

// newTestConn wires a Conn directly onto a scriptedTransport, skipping
// Dial/handshake entirely: every method under test drives its own
// command from a fresh Channel (BeginCommand resets the sequence), so
// no prior handshake state is needed.
func newTestConn(transport *scriptedTransport, caps protocol.CapabilityFlags) *Conn {
	ch := algo.NewChannel()
	eng := engine.New(transport, ch)
	return &Conn{
		engine:    eng,
		transport: nil,
		ch:        ch,
		result:    algo.HandshakeResult{Capabilities: caps},
		state:     stateReady,
	}
}

func TestConnPingSuccess(t *testing.T) {
	transport := &scriptedTransport{
		reads: [][]byte{frame(protocol.EncodeOKPacket(protocol.OKPacket{}), 1)},
	}
	c := newTestConn(transport, protocol.CapDeprecateEOF)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if len(transport.writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(transport.writes))
	}
}

func TestConnQueryWithDeprecateEOF(t *testing.T) {
	transport := &scriptedTransport{
		reads: [][]byte{
			frame([]byte{0x01}, 1), // 1 column
			frame(protocol.EncodeColumnDefinition(value.Field{Name: "id", Type: value.TypeLong}), 2),
			frame(textRow("7"), 3),
			frame(resultsetTerminator(protocol.OKPacket{}), 4),
		},
	}
	c := newTestConn(transport, protocol.CapDeprecateEOF)

	results, err := c.Query(context.Background(), "select id from t")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || len(results[0].Rows) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Rows[0][0].Int64() != 7 {
		t.Fatalf("row = %+v", results[0].Rows[0])
	}
}

func TestConnQueryWithoutDeprecateEOF(t *testing.T) {
	transport := &scriptedTransport{
		reads: [][]byte{
			frame([]byte{0x01}, 1),
			frame(protocol.EncodeColumnDefinition(value.Field{Name: "id", Type: value.TypeLong}), 2),
			frame(protocol.EncodeEOFPacket(protocol.EOFPacket{}), 3),
			frame(textRow("9"), 4),
			frame(protocol.EncodeEOFPacket(protocol.EOFPacket{}), 5),
		},
	}
	c := newTestConn(transport, 0) // no CapDeprecateEOF negotiated

	results, err := c.Query(context.Background(), "select id from t")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].Rows[0][0].Int64() != 9 {
		t.Fatalf("results = %+v", results)
	}
}

func TestConnPrepareAndExecute(t *testing.T) {
	prepareHead := []byte{0x00}
	prepareHead = append(prepareHead, 0, 0, 0, 0) // statement id
	prepareHead = append(prepareHead, 0, 0)       // num_columns = 0
	prepareHead = append(prepareHead, 1, 0)       // num_params = 1
	prepareHead = append(prepareHead, 0)          // filler
	prepareHead = append(prepareHead, 0, 0)       // warning_count

	transport := &scriptedTransport{
		reads: [][]byte{
			frame(prepareHead, 1),
			frame(protocol.EncodeColumnDefinition(value.Field{Name: "?", Type: value.TypeLong}), 2),
			frame(protocol.EncodeOKPacket(protocol.OKPacket{}), 1), // OK terminating stmt_execute's empty resultset; Execute starts its own command at seq 0
		},
	}
	c := newTestConn(transport, protocol.CapDeprecateEOF)

	stmt, err := c.Prepare(context.Background(), "update t set x = ? where id = 1")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if stmt.ParamCount() != 1 {
		t.Fatalf("ParamCount = %d, want 1", stmt.ParamCount())
	}

	results, err := stmt.Execute(context.Background(), []value.Value{value.Int64(5)}, []bool{false})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
}

func TestConnExecuteWrongParamCount(t *testing.T) {
	c := newTestConn(&scriptedTransport{}, protocol.CapDeprecateEOF)
	stmt := &Stmt{conn: c, stmt: algo.PreparedStatement{StatementID: 3, Params: make([]value.Field, 2)}}

	_, err := stmt.Execute(context.Background(), []value.Value{value.Int64(1)}, []bool{false})
	if err == nil {
		t.Fatal("expected wrong_num_params error")
	}
}

func TestConnRunMarksFatalErrorsNotConnected(t *testing.T) {
	transport := &scriptedTransport{reads: [][]byte{}}
	c := newTestConn(transport, protocol.CapDeprecateEOF)

	if _, err := c.Query(context.Background(), "select 1"); err == nil {
		t.Fatal("expected an error from an exhausted script")
	}
	if c.state != stateNotConnected {
		t.Fatal("expected the connection to be marked not-connected after a fatal error")
	}

	if _, err := c.Query(context.Background(), "select 1"); err == nil {
		t.Fatal("expected subsequent calls on a not-connected Conn to fail immediately")
	}
}

func textRow(cols ...string) []byte {
	w := codec.NewWriter(0)
	for _, c := range cols {
		w.PutLengthEncodedString([]byte(c))
	}
	return w.Bytes()
}

// resultsetTerminator builds the OK packet a DEPRECATE_EOF server
// sends to end a row stream: same field layout as
// protocol.EncodeOKPacket but with the 0xfe header the real wire
// protocol reuses from EOF, so it isn't mistaken for a row.
func resultsetTerminator(p protocol.OKPacket) []byte {
	w := codec.NewWriter(16 + len(p.Info))
	w.PutUint8(0xfe)
	w.PutLengthEncodedInt(p.AffectedRows)
	w.PutLengthEncodedInt(p.LastInsertID)
	w.PutUint16(uint16(p.StatusFlags))
	w.PutUint16(p.Warnings)
	w.PutEOFString([]byte(p.Info))
	return w.Bytes()
}
