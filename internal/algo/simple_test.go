package algo

import (
	"testing"

	"github.com/dbbouncer/gomysql/internal/protocol"
)

func TestPingAlgoSuccess(t *testing.T) {
	ch := NewChannel()
	a := NewPingAlgo(ch)

	act := a.Resume(nil, 0)
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d", act.Kind)
	}
	act = a.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("action = %d", act.Kind)
	}

	okWire := frameAt(protocol.EncodeOKPacket(protocol.OKPacket{}), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), okWire))
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
}

func TestPingAlgoServerError(t *testing.T) {
	ch := NewChannel()
	a := NewPingAlgo(ch)
	a.Resume(nil, 0)
	a.Resume(nil, 0)

	errWire := frameAt(protocol.EncodeERRPacket(errDiag()), ch.Reader.Sequence())
	act := a.Resume(nil, copy(ch.ReadBuf(), errWire))
	if act.Kind != ActionDone || act.Err == nil {
		t.Fatalf("expected server error, got %+v", act)
	}
}

func TestQuitAlgoCompletesAfterWrite(t *testing.T) {
	ch := NewChannel()
	a := NewQuitAlgo(ch)

	act := a.Resume(nil, 0)
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d", act.Kind)
	}
	act = a.Resume(nil, 0)
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
}

func TestCloseStmtAlgoCompletesAfterWrite(t *testing.T) {
	ch := NewChannel()
	a := NewCloseStmtAlgo(ch, 9)

	act := a.Resume(nil, 0)
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d", act.Kind)
	}
	act = a.Resume(nil, 0)
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
}

func TestResetAlgoSuccess(t *testing.T) {
	ch := NewChannel()
	a := NewResetAlgo(ch)
	a.Resume(nil, 0)
	act := a.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("action = %d", act.Kind)
	}
	okWire := frameAt(protocol.EncodeOKPacket(protocol.OKPacket{}), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), okWire))
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
}
