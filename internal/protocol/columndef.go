package protocol

import (
	"github.com/dbbouncer/gomysql/internal/codec"
	"github.com/dbbouncer/gomysql/internal/value"
)

// DecodeColumnDefinition parses Protocol::ColumnDefinition41. In
// MetadataMinimal mode, all name fields except the column name are
// dropped from the returned Field (spec.md §4.3). The server still
// sends every name field; this decoder only chooses what to keep.
func DecodeColumnDefinition(payload []byte, mode value.MetadataMode) (value.Field, error) {
	r := codec.NewReader(payload)
	var f value.Field

	catalog, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}
	schema, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}
	table, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}
	orgTable, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}
	name, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}
	orgName, err := r.LengthEncodedString()
	if err != nil {
		return f, err
	}

	if _, err := r.LengthEncodedInt(); err != nil { // fixed-fields-length marker, always 0x0c
		return f, err
	}

	collation, err := r.Uint16()
	if err != nil {
		return f, err
	}
	length, err := r.Uint32()
	if err != nil {
		return f, err
	}
	typeCode, err := r.Uint8()
	if err != nil {
		return f, err
	}
	flags, err := r.Uint16()
	if err != nil {
		return f, err
	}
	decimals, err := r.Uint8()
	if err != nil {
		return f, err
	}

	f.Name = string(name)
	f.CollationID = collation
	f.Length = length
	f.Type = value.FieldType(typeCode)
	f.Flags = value.ColumnFlags(flags)
	f.Decimals = decimals

	if mode == value.MetadataFull {
		f.Catalog = string(catalog)
		f.Schema = string(schema)
		f.Table = string(table)
		f.OrgTable = string(orgTable)
		f.OrgName = string(orgName)
	}

	return f, nil
}

// EncodeColumnDefinition serializes a column definition, used by
// parameter-definition packets (spec.md §4.8) which share the wire
// shape with column definitions.
func EncodeColumnDefinition(f value.Field) []byte {
	w := codec.NewWriter(64)
	w.PutLengthEncodedString([]byte(f.Catalog))
	w.PutLengthEncodedString([]byte(f.Schema))
	w.PutLengthEncodedString([]byte(f.Table))
	w.PutLengthEncodedString([]byte(f.OrgTable))
	w.PutLengthEncodedString([]byte(f.Name))
	w.PutLengthEncodedString([]byte(f.OrgName))
	w.PutLengthEncodedInt(0x0c)
	w.PutUint16(f.CollationID)
	w.PutUint32(f.Length)
	w.PutUint8(uint8(f.Type))
	w.PutUint16(uint16(f.Flags))
	w.PutUint8(f.Decimals)
	w.PutUint16(0) // filler
	return w.Bytes()
}
