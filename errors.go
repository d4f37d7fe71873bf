// Package gomysql is the root of the client library; it defines the
// error taxonomy shared by every internal package (§7).
package gomysql

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way spec.md §7 enumerates client/server
// error kinds. Pool and façade code use Kind to decide whether a
// connection must be reopened (see IsFatal).
type Kind int

const (
	KindUnknown Kind = iota

	// client/* — detected locally, before or instead of a server reply.
	KindIncompleteMessage
	KindExtraBytes
	KindSequenceNumberMismatch
	KindServerUnsupported
	KindProtocolValueError
	KindUnknownAuthPlugin
	KindAuthPluginRequiresSSL
	KindWrongNumParams
	KindStatementWithoutResults
	KindUnknownCharacterSet
	KindCancelled
	KindTimeout
	KindClientError // catch-all client-side precondition/usage violation

	// server/* — the server itself reported a failure after completing
	// its side of the exchange.
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindIncompleteMessage:
		return "client/incomplete_message"
	case KindExtraBytes:
		return "client/extra_bytes"
	case KindSequenceNumberMismatch:
		return "client/sequence_number_mismatch"
	case KindServerUnsupported:
		return "client/server_unsupported"
	case KindProtocolValueError:
		return "client/protocol_value_error"
	case KindUnknownAuthPlugin:
		return "client/unknown_auth_plugin"
	case KindAuthPluginRequiresSSL:
		return "client/auth_plugin_requires_ssl"
	case KindWrongNumParams:
		return "client/wrong_num_params"
	case KindStatementWithoutResults:
		return "client/statement_without_results"
	case KindUnknownCharacterSet:
		return "client/unknown_character_set"
	case KindCancelled:
		return "client/cancelled"
	case KindTimeout:
		return "client/timeout"
	case KindClientError:
		return "client/error"
	case KindServerError:
		return "server/error"
	default:
		return "unknown"
	}
}

// ServerDiagnostics carries the structured fields of a MySQL ERR_Packet
// (spec.md §4.3 ERR packet / §7 server/<code>).
type ServerDiagnostics struct {
	Code     uint16
	SQLState string
	Message  string
}

func (d ServerDiagnostics) String() string {
	return fmt.Sprintf("Error %d (%s): %s", d.Code, d.SQLState, d.Message)
}

// Error is the single error type returned by every package in this
// module. Diagnostics is populated only for KindServerError.
type Error struct {
	Kind        Kind
	Diagnostics ServerDiagnostics
	Cause       error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindServerError:
		return e.Diagnostics.String()
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, gomysql.New(gomysql.KindTimeout, nil)) or compare via
// KindOf below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds a client-side error of the given kind, optionally wrapping
// a lower-level cause (an incomplete read, a malformed length encoding).
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds a client-side error with a formatted cause message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// NewServerError builds a server/<code> error from a parsed ERR_Packet.
func NewServerError(d ServerDiagnostics) *Error {
	return &Error{Kind: KindServerError, Diagnostics: d}
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (and
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal classifies an error the way spec.md §7's is_fatal_error does:
// I/O failures, framing/protocol violations and cancellation leave the
// connection in an undefined state and must cause the pool to reopen
// it; a server-reported error (the server completed its response) does
// not. Errors that aren't *Error at all (e.g. a raw net.Conn I/O
// failure surfacing from engine) are treated as fatal, since an
// unrecognized transport error gives no basis for trusting the
// connection's state.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindServerError, KindWrongNumParams, KindStatementWithoutResults,
		KindUnknownCharacterSet:
		return false
	default:
		return true
	}
}
