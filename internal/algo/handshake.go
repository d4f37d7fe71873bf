package algo

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/auth"
	"github.com/dbbouncer/gomysql/internal/protocol"
)

// SSLMode mirrors spec.md §6's ssl_mode: disable never upgrades,
// enable upgrades only if the server advertises CLIENT_SSL, require
// fails the handshake if the server doesn't. A UNIX-socket connection
// never upgrades, whatever the mode.
type SSLMode int

const (
	SSLDisable SSLMode = iota
	SSLEnable
	SSLRequire
)

// HandshakeParams is spec.md §6's authentication input, minus the
// address (owned by the transport, out of scope here).
type HandshakeParams struct {
	Username        string
	Password        []byte
	Database        string
	Collation       uint8
	SSLMode         SSLMode
	IsUnixSocket    bool
	MultiStatements bool
	MaxPacketSize   uint32
	ConnectAttrs    map[string]string
}

// HandshakeResult is what the façade commits to connection state on
// success (spec.md §4.6 rule 5).
type HandshakeResult struct {
	Capabilities protocol.CapabilityFlags
	IsMariaDB    bool
	CharacterSet uint8
	UsingSSL     bool
}

type handshakeState int

const (
	hsAwaitGreeting handshakeState = iota
	hsSSLRequestSent
	hsAwaitSSLHandshakeDone
	hsAwaitServerReply
	hsDone
)

// HandshakeAlgo drives spec.md §4.6's state machine: await_greeting ->
// parse_greeting -> (maybe) send_ssl_request -> tls_handshake ->
// send_login -> await_server_reply -> {done | auth_switch | more_data}.
type HandshakeAlgo struct {
	ch     *Channel
	params HandshakeParams

	state   handshakeState
	greeting protocol.Greeting
	caps    protocol.CapabilityFlags
	usingSSL bool
	result  HandshakeResult
}

func NewHandshakeAlgo(ch *Channel, params HandshakeParams) *HandshakeAlgo {
	return &HandshakeAlgo{ch: ch, params: params, state: hsAwaitGreeting}
}

// Result returns the negotiated handshake outcome; valid only after
// Resume has returned ActionDone with a nil error.
func (a *HandshakeAlgo) Result() HandshakeResult { return a.result }

func (a *HandshakeAlgo) Resume(err error, n int) Action {
	if err != nil {
		return doneErr(err)
	}

	switch a.state {
	case hsAwaitGreeting:
		return a.awaitGreeting(n)
	case hsSSLRequestSent:
		a.state = hsAwaitSSLHandshakeDone
		return Action{Kind: ActionSSLHandshake}
	case hsAwaitSSLHandshakeDone:
		return a.sendLogin()
	case hsAwaitServerReply:
		return a.awaitServerReply(n)
	default:
		return doneOK()
	}
}

func (a *HandshakeAlgo) awaitGreeting(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	if len(payload) > 0 && payload[0] == 0xff {
		diag, derr := protocol.DecodeERRPacket(payload)
		if derr != nil {
			return doneErr(derr)
		}
		return doneErr(gomysql.NewServerError(diag))
	}

	g, gerr := protocol.DecodeGreeting(payload)
	if gerr != nil {
		return doneErr(gerr)
	}
	a.greeting = g

	wantSSL := a.params.SSLMode != SSLDisable && !a.params.IsUnixSocket
	if a.params.IsUnixSocket {
		wantSSL = false
	}
	wantDB := a.params.Database != ""
	a.caps = protocol.NegotiateCapabilities(g.Capabilities, wantSSL, wantDB, a.params.MultiStatements)
	if len(a.params.ConnectAttrs) > 0 && g.Capabilities.Has(protocol.CapConnectAttrs) {
		a.caps |= protocol.CapConnectAttrs
	}

	if a.params.SSLMode == SSLRequire && !a.params.IsUnixSocket && !a.caps.Has(protocol.CapSSL) {
		return doneErr(gomysql.Newf(gomysql.KindServerUnsupported, "server does not support TLS"))
	}

	if a.caps.Has(protocol.CapSSL) {
		sslReq := protocol.EncodeSSLRequest(a.caps, a.params.MaxPacketSize, a.params.Collation)
		wire := a.ch.WriteContinuation(sslReq)
		a.usingSSL = true
		a.state = hsSSLRequestSent
		return write(wire)
	}

	return a.sendLogin()
}

func (a *HandshakeAlgo) sendLogin() Action {
	authResp, rerr := auth.Response(a.greeting.AuthPluginName, a.params.Password, a.greeting.AuthPluginData)
	if rerr != nil {
		return doneErr(rerr)
	}

	req := protocol.LoginRequest{
		Capabilities:   a.caps,
		MaxPacketSize:  a.params.MaxPacketSize,
		CharacterSet:   a.params.Collation,
		Username:       a.params.Username,
		AuthResponse:   authResp,
		Database:       a.params.Database,
		AuthPluginName: a.greeting.AuthPluginName,
		ConnectAttrs:   a.params.ConnectAttrs,
	}
	wire := a.ch.WriteContinuation(protocol.EncodeLoginRequest(req))
	a.state = hsAwaitServerReply
	return write(wire)
}

func (a *HandshakeAlgo) awaitServerReply(n int) Action {
	payload, done, ferr := a.ch.Feed(n)
	if ferr != nil {
		return doneErr(ferr)
	}
	if !done {
		return read()
	}

	if len(payload) == 0 {
		return doneErr(gomysql.New(gomysql.KindIncompleteMessage, nil))
	}

	switch {
	case payload[0] == 0x00: // OK
		if _, err := protocol.DecodeOKPacket(payload); err != nil {
			return doneErr(err)
		}
		a.commitResult()
		a.state = hsDone
		return doneOK()

	case payload[0] == 0xff: // ERR
		diag, derr := protocol.DecodeERRPacket(payload)
		if derr != nil {
			return doneErr(derr)
		}
		return doneErr(gomysql.NewServerError(diag))

	case protocol.IsAuthSwitchRequest(payload):
		sw, swerr := protocol.DecodeAuthSwitchRequest(payload)
		if swerr != nil {
			return doneErr(swerr)
		}
		resp, rerr := auth.Response(sw.PluginName, a.params.Password, sw.Data)
		if rerr != nil {
			return doneErr(rerr)
		}
		a.greeting.AuthPluginName = sw.PluginName
		wire := a.ch.WriteContinuation(protocol.EncodeAuthSwitchResponse(resp))
		return write(wire)

	case protocol.IsAuthMoreData(payload):
		status, merr := protocol.DecodeAuthMoreData(payload)
		if merr != nil {
			return doneErr(merr)
		}
		switch auth.CachingSHA2MoreDataStatus(status) {
		case auth.CachingSHA2FastAuthSuccess:
			return read() // stay in this state, await the OK that follows
		case auth.CachingSHA2FullAuthRequired:
			if !a.usingSSL && !a.params.IsUnixSocket {
				return doneErr(gomysql.New(gomysql.KindAuthPluginRequiresSSL, nil))
			}
			wire := a.ch.WriteContinuation(auth.PlainPasswordOverSSL(a.params.Password))
			return write(wire)
		default:
			return doneErr(gomysql.Newf(gomysql.KindProtocolValueError, "unknown auth-more-data status %#x", status))
		}

	default:
		return doneErr(gomysql.New(gomysql.KindProtocolValueError, nil))
	}
}

func (a *HandshakeAlgo) commitResult() {
	a.result = HandshakeResult{
		Capabilities: a.caps,
		IsMariaDB:    a.greeting.IsMariaDB(),
		CharacterSet: a.params.Collation,
		UsingSSL:     a.usingSSL,
	}
}
