package value

// Row is a fixed-length ordered sequence of values. spec.md §3's
// invariant — every emitted row's arity equals the column count of its
// originating resultset — is enforced by the decoders in text.go and
// binary.go, which always allocate len(fields) values.
type Row []Value

// Resultset is spec.md §3's resultset: column metadata plus the
// terminal OK's bookkeeping fields and the more-results flag used to
// chain multiple resultsets (spec.md §4.7).
type Resultset struct {
	Fields []Field

	AffectedRows uint64
	LastInsertID uint64
	Warnings     uint16
	Info         string

	HasMoreResults bool
	// OutParams is true when this resultset is a stored-procedure
	// OUT-param follow-on, signalled by SERVER_PS_OUT_PARAMS on the
	// terminating OK (spec.md §4.3, GLOSSARY).
	OutParams bool

	Rows []Row
}
