package algo

import (
	"bytes"
	"testing"

	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/frame"
	"github.com/dbbouncer/gomysql/internal/protocol"
)

func errDiag() gomysql.ServerDiagnostics {
	return gomysql.ServerDiagnostics{Code: 1045, SQLState: "28000", Message: "Access denied"}
}

// buildGreetingPayload mirrors the server-side HandshakeV10 layout
// (protocol.DecodeGreeting's counterpart), hand-encoded here since the
// encoder belongs to the server side of a real connection, not this
// client library.
func buildGreetingPayload(authData []byte, caps protocol.CapabilityFlags, plugin string) []byte {
	w := codec.NewWriter(0)
	w.PutUint8(10)
	w.PutNullTerminatedString("8.0.34-test")
	w.PutUint32(7)
	w.PutFixedString(authData[:8])
	w.PutUint8(0)
	w.PutUint16(uint16(caps))
	w.PutUint8(45)
	w.PutUint16(uint16(protocol.StatusAutocommit))
	w.PutUint16(uint16(caps >> 16))
	w.PutUint8(uint8(len(authData) + 1))
	w.PutZeros(10)
	w.PutFixedString(authData[8:])
	w.PutUint8(0)
	w.PutNullTerminatedString(plugin)
	return w.Bytes()
}

func frameAt(payload []byte, seq uint8) []byte {
	w := frame.NewWriter()
	out, _ := w.Write(payload, seq)
	return out
}

// feedWire resumes the algo once; if it asks for a read, copies wire
// into the channel's read buffer in one go and resumes it once more,
// returning the last Action.
func feedWire(t *testing.T, a *HandshakeAlgo, ch *Channel, wire []byte) Action {
	t.Helper()
	act := a.Resume(nil, 0)
	if act.Kind != ActionRead {
		return act
	}
	n := copy(ch.ReadBuf(), wire)
	return a.Resume(nil, n)
}

func TestHandshakeNativePasswordSuccess(t *testing.T) {
	authData := bytes.Repeat([]byte{0x4a}, 20)
	serverCaps := protocol.CapabilityFlags(0)
	for _, c := range []protocol.CapabilityFlags{
		protocol.CapLongPassword, protocol.CapProtocol41, protocol.CapSecureConnection,
		protocol.CapPluginAuth, protocol.CapPluginAuthLenencData, protocol.CapTransactions,
		protocol.CapDeprecateEOF, protocol.CapMultiResults,
	} {
		serverCaps |= c
	}

	ch := NewChannel()
	params := HandshakeParams{
		Username: "root",
		Password: []byte("secret"),
		SSLMode:  SSLDisable,
	}
	algo := NewHandshakeAlgo(ch, params)

	greetingWire := frameAt(buildGreetingPayload(authData, serverCaps, "mysql_native_password"), 0)
	act := feedWire(t, algo, ch, greetingWire)
	if act.Kind != ActionWrite {
		t.Fatalf("after greeting, action = %d, want ActionWrite", act.Kind)
	}
	if len(act.WriteData) == 0 {
		t.Fatal("expected login request bytes")
	}

	// Engine reports the write as done; algo should now ask to read the
	// server's reply.
	act = algo.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("after login write, action = %d, want ActionRead", act.Kind)
	}

	okWire := frameAt(protocol.EncodeOKPacket(protocol.OKPacket{StatusFlags: protocol.StatusAutocommit}), ch.Reader.Sequence())
	n := copy(ch.ReadBuf(), okWire)
	act = algo.Resume(nil, n)
	if act.Kind != ActionDone {
		t.Fatalf("final action = %d, want ActionDone", act.Kind)
	}
	if act.Err != nil {
		t.Fatalf("unexpected error: %v", act.Err)
	}

	result := algo.Result()
	if result.UsingSSL {
		t.Fatal("did not expect SSL to be negotiated")
	}
	if !result.Capabilities.Has(protocol.CapProtocol41) {
		t.Fatal("expected CapProtocol41 in negotiated capabilities")
	}
}

func TestHandshakeAuthSwitchThenSuccess(t *testing.T) {
	authData := bytes.Repeat([]byte{0x11}, 20)
	serverCaps := protocol.CapabilityFlags(0)
	for _, c := range []protocol.CapabilityFlags{
		protocol.CapLongPassword, protocol.CapProtocol41, protocol.CapSecureConnection,
		protocol.CapPluginAuth, protocol.CapPluginAuthLenencData, protocol.CapTransactions,
		protocol.CapDeprecateEOF, protocol.CapMultiResults,
	} {
		serverCaps |= c
	}

	ch := NewChannel()
	params := HandshakeParams{
		Username: "root",
		Password: []byte("secret"),
		SSLMode:  SSLDisable,
	}
	algo := NewHandshakeAlgo(ch, params)

	greetingWire := frameAt(buildGreetingPayload(authData, serverCaps, "mysql_native_password"), 0)
	act := feedWire(t, algo, ch, greetingWire)
	if act.Kind != ActionWrite {
		t.Fatalf("after greeting, action = %d, want ActionWrite", act.Kind)
	}

	act = algo.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("after login write, action = %d, want ActionRead", act.Kind)
	}

	newScramble := bytes.Repeat([]byte{0x22}, 20)
	w := codec.NewWriter(0)
	w.PutUint8(0xfe)
	w.PutNullTerminatedString("caching_sha2_password")
	w.PutFixedString(newScramble)
	switchWire := frameAt(w.Bytes(), ch.Reader.Sequence())
	n := copy(ch.ReadBuf(), switchWire)
	act = algo.Resume(nil, n)
	if act.Kind != ActionWrite {
		t.Fatalf("after auth switch, action = %d, want ActionWrite", act.Kind)
	}

	act = algo.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("after switch response write, action = %d, want ActionRead", act.Kind)
	}

	okWire := frameAt(protocol.EncodeOKPacket(protocol.OKPacket{}), ch.Reader.Sequence())
	n = copy(ch.ReadBuf(), okWire)
	act = algo.Resume(nil, n)
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
}

func TestHandshakeServerErrRejectsLogin(t *testing.T) {
	authData := bytes.Repeat([]byte{0x33}, 20)
	ch := NewChannel()
	params := HandshakeParams{Username: "root", Password: []byte("x"), SSLMode: SSLDisable}
	algo := NewHandshakeAlgo(ch, params)

	greetingWire := frameAt(buildGreetingPayload(authData, protocol.CapLongPassword|protocol.CapProtocol41|protocol.CapSecureConnection|protocol.CapPluginAuth, "mysql_native_password"), 0)
	act := feedWire(t, algo, ch, greetingWire)
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d, want ActionWrite", act.Kind)
	}

	act = algo.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("action = %d, want ActionRead", act.Kind)
	}

	errWire := frameAt(protocol.EncodeERRPacket(errDiag()), ch.Reader.Sequence())
	n := copy(ch.ReadBuf(), errWire)
	act = algo.Resume(nil, n)
	if act.Kind != ActionDone || act.Err == nil {
		t.Fatalf("expected terminal error, got %+v", act)
	}
}
