package algo

import (
	"testing"

	"github.com/dbbouncer/gomysql/internal/protocol"
)

func TestPipelineAlgoTwoStages(t *testing.T) {
	ch := NewChannel()
	commands := [][]byte{
		protocol.EncodeComQuery("set names utf8mb4"),
		protocol.EncodeComQuery("select 1"),
	}
	a := NewPipelineAlgo(ch, commands)

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
	if act.Kind != ActionRead {
		t.Fatalf("after first head, action = %d", act.Kind)
	}

	headWire := frameAt([]byte{0x01}, ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), headWire))
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}

	heads := a.Heads()
	if len(heads) != 2 {
		t.Fatalf("got %d heads, want 2", len(heads))
	}
	if heads[0].OK == nil {
		t.Fatal("expected first stage to be an OK head")
	}
	if heads[1].ColumnCount != 1 {
		t.Fatalf("second stage column count = %d", heads[1].ColumnCount)
	}
}

func TestPipelineAlgoEmpty(t *testing.T) {
	ch := NewChannel()
	a := NewPipelineAlgo(ch, nil)
	act := a.Resume(nil, 0)
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("action = %+v", act)
	}
}
