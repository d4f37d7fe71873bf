package algo

import (
	"testing"

	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

func buildColumnDef(name string, t value.FieldType) []byte {
	return protocol.EncodeColumnDefinition(value.Field{Name: name, Type: t})
}

func buildTextRow(cols ...string) []byte {
	w := codec.NewWriter(0)
	for _, c := range cols {
		w.PutLengthEncodedString([]byte(c))
	}
	return w.Bytes()
}

// buildResultsetTerminator builds the OK packet a DEPRECATE_EOF server
// sends to end a row stream: same field layout as EncodeOKPacket but
// with the 0xfe header the real wire protocol reuses from EOF, so it
// isn't mistaken for a row by isRowTerminator.
func buildResultsetTerminator(p protocol.OKPacket) []byte {
	w := codec.NewWriter(16 + len(p.Info))
	w.PutUint8(0xfe)
	w.PutLengthEncodedInt(p.AffectedRows)
	w.PutLengthEncodedInt(p.LastInsertID)
	w.PutUint16(uint16(p.StatusFlags))
	w.PutUint16(p.Warnings)
	w.PutEOFString([]byte(p.Info))
	return w.Bytes()
}

func TestQueryAlgoSingleResultset(t *testing.T) {
	ch := NewChannel()
	a := NewQueryAlgo(ch, "select id, name from t", value.MetadataFull)

	act := a.Resume(nil, 0) // send command
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d, want ActionWrite", act.Kind)
	}

	act = a.Resume(nil, 0) // write done, await head
	if act.Kind != ActionRead {
		t.Fatalf("action = %d, want ActionRead", act.Kind)
	}

	headWire := frameAt([]byte{0x02}, ch.Reader.Sequence()) // 2 columns
	act = a.Resume(nil, copy(ch.ReadBuf(), headWire))
	if act.Kind != ActionRead {
		t.Fatalf("after head, action = %d, want ActionRead", act.Kind)
	}

	col1Wire := frameAt(buildColumnDef("id", value.TypeLong), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), col1Wire))
	if act.Kind != ActionRead {
		t.Fatalf("after col1, action = %d, want ActionRead", act.Kind)
	}

	col2Wire := frameAt(buildColumnDef("name", value.TypeVarString), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), col2Wire))
	if act.Kind != ActionRead {
		t.Fatalf("after col2, action = %d, want ActionRead", act.Kind)
	}

	rowWire := frameAt(buildTextRow("1", "alice"), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), rowWire))
	if act.Kind != ActionRead {
		t.Fatalf("after row, action = %d, want ActionRead", act.Kind)
	}

	okWire := frameAt(buildResultsetTerminator(protocol.OKPacket{}), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), okWire))
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}

	results := a.Resultsets()
	if len(results) != 1 {
		t.Fatalf("got %d resultsets, want 1", len(results))
	}
	rs := results[0]
	if len(rs.Fields) != 2 || len(rs.Rows) != 1 {
		t.Fatalf("resultset = %+v", rs)
	}
	if rs.Rows[0][0].Int64() != 1 {
		t.Fatalf("col0 = %v", rs.Rows[0][0])
	}
	if string(rs.Rows[0][1].StringBytes()) != "alice" {
		t.Fatalf("col1 = %v", rs.Rows[0][1])
	}
}

func TestQueryAlgoOKOnlyResultsetHasNoRows(t *testing.T) {
	ch := NewChannel()
	a := NewQueryAlgo(ch, "update t set x=1", value.MetadataFull)

	act := a.Resume(nil, 0)
	if act.Kind != ActionWrite {
		t.Fatalf("action = %d", act.Kind)
	}
	act = a.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("action = %d", act.Kind)
	}

	okWire := frameAt(protocol.EncodeOKPacket(protocol.OKPacket{AffectedRows: 3}), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), okWire))
	if act.Kind != ActionDone || act.Err != nil {
		t.Fatalf("final action = %+v", act)
	}
	results := a.Resultsets()
	if len(results) != 1 || results[0].AffectedRows != 3 {
		t.Fatalf("results = %+v", results)
	}
}

func TestStmtExecuteAlgoParamCountMismatch(t *testing.T) {
	ch := NewChannel()
	a := NewStmtExecuteAlgo(ch, 7, 2, []value.Value{value.Int64(1)}, []bool{false}, value.MetadataFull)

	act := a.Resume(nil, 0)
	if act.Kind != ActionDone || act.Err == nil {
		t.Fatalf("expected immediate wrong_num_params error, got %+v", act)
	}
}

func TestQueryAlgoServerErrorAtHead(t *testing.T) {
	ch := NewChannel()
	a := NewQueryAlgo(ch, "select bogus", value.MetadataFull)

	act := a.Resume(nil, 0)
	act = a.Resume(nil, 0)
	if act.Kind != ActionRead {
		t.Fatalf("action = %d", act.Kind)
	}

	diag := errDiag()
	errWire := frameAt(protocol.EncodeERRPacket(diag), ch.Reader.Sequence())
	act = a.Resume(nil, copy(ch.ReadBuf(), errWire))
	if act.Kind != ActionDone || act.Err == nil {
		t.Fatalf("expected server error, got %+v", act)
	}
}
