package algo

import (
	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

// rowEncoding selects text or binary row decoding, per spec.md §4.4's
// two row formats.
type rowEncoding int

const (
	encodingText rowEncoding = iota
	encodingBinary
)

// resultsetCursor is the state shared by read-resultset-head and
// read-rows (spec.md §4.7): the current resultset's column metadata,
// the wire encoding in use, and whether the server negotiated
// DEPRECATE_EOF (absent that bit, a legacy EOF packet precedes rows
// and terminates them instead of the final OK).
type resultsetCursor struct {
	encoding         rowEncoding
	metadataMode     value.MetadataMode
	usesDeprecateEOF bool

	fields        []value.Field
	colsRemaining int
	rs            *value.Resultset
}

// decodeHead classifies a read-resultset-head packet (spec.md §4.7):
// an OK means an empty resultset, an ERR fails outright, otherwise the
// payload is a length-encoded column count and the cursor starts
// collecting column definitions.
func (c *resultsetCursor) decodeHead(payload []byte) (emptyResultset *value.Resultset, wantColumnDefs bool, err error) {
	ok, colCount, derr := protocol.DispatchGenericResponse(payload)
	if derr != nil {
		return nil, false, derr
	}
	if ok != nil {
		return &value.Resultset{
			AffectedRows:   ok.AffectedRows,
			LastInsertID:   ok.LastInsertID,
			Warnings:       ok.Warnings,
			Info:           ok.Info,
			HasMoreResults: ok.StatusFlags.Has(protocol.StatusMoreResultsExists),
			OutParams:      ok.StatusFlags.Has(protocol.StatusPSOutParams),
		}, false, nil
	}

	c.fields = make([]value.Field, 0, colCount)
	c.colsRemaining = int(colCount)
	c.rs = &value.Resultset{}
	return nil, true, nil
}

// addColumnDef folds one column-definition packet in; it reports
// whether more column-definition packets are expected.
func (c *resultsetCursor) addColumnDef(payload []byte) (more bool, err error) {
	f, derr := protocol.DecodeColumnDefinition(payload, c.metadataMode)
	if derr != nil {
		return false, derr
	}
	c.fields = append(c.fields, f)
	c.colsRemaining--
	return c.colsRemaining > 0, nil
}

func (c *resultsetCursor) finishColumnDefs() {
	c.rs.Fields = c.fields
}

// isRowTerminator reports whether payload is the marker that ends the
// row stream. Under DEPRECATE_EOF the terminator is an OK packet
// rather than a legacy EOF packet, but it still carries the same
// 0xfe-header/length-under-9 shape (Protocol::OK_Packet reuses the EOF
// header byte for backward compatibility); without it, a binary-protocol
// row (which always starts with a 0x00 byte) or a text row whose first
// column is an empty string would otherwise be misread as the
// terminator.
func (c *resultsetCursor) isRowTerminator(payload []byte) bool {
	return protocol.IsEOFPacket(payload)
}

// decodeRow parses one non-terminator row packet per the cursor's
// current encoding and appends it to the in-progress resultset.
func (c *resultsetCursor) decodeRow(payload []byte) error {
	r := codec.NewReader(payload)
	var (
		row value.Row
		err error
	)
	if c.encoding == encodingText {
		row, err = value.DecodeTextRow(r, c.fields)
	} else {
		row, err = value.DecodeBinaryRow(r, c.fields)
	}
	if err != nil {
		return err
	}
	c.rs.Rows = append(c.rs.Rows, row)
	return nil
}

// finishRows parses the terminator packet and folds its status flags
// into the resultset, reporting whether another resultset follows.
func (c *resultsetCursor) finishRows(payload []byte) (*value.Resultset, error) {
	var (
		status   protocol.ServerStatusFlags
		warnings uint16
	)
	if c.usesDeprecateEOF {
		ok, err := protocol.DecodeOKPacket(payload)
		if err != nil {
			return nil, err
		}
		status, warnings = ok.StatusFlags, ok.Warnings
	} else {
		eof, err := protocol.DecodeEOFPacket(payload)
		if err != nil {
			return nil, err
		}
		status, warnings = eof.StatusFlags, eof.Warnings
	}
	c.rs.Warnings = warnings
	c.rs.HasMoreResults = status.Has(protocol.StatusMoreResultsExists)
	c.rs.OutParams = status.Has(protocol.StatusPSOutParams)
	return c.rs, nil
}
