// Package conn is the connection façade: spec.md §4.6-§4.8's
// algorithms and §6's transport wired onto a real net.Conn, giving
// callers a single-connection request/response API. A Conn is not
// safe for concurrent use (spec.md §5) — the pool package is what
// serializes multi-borrower access.
package conn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	gomysql "github.com/dbbouncer/gomysql"
	"github.com/dbbouncer/gomysql/engine"
	"github.com/dbbouncer/gomysql/internal/algo"
	"github.com/dbbouncer/gomysql/internal/observability"
	"github.com/dbbouncer/gomysql/internal/protocol"
	"github.com/dbbouncer/gomysql/internal/value"
)

// Config is spec.md §6's authentication input plus the address and
// transport-level knobs dial needs that the algorithm layer doesn't
// own.
type Config struct {
	// Address is "host:port" for TCP, or a path ending in ".sock" (or
	// any path containing a "/") to dial as a UNIX socket.
	Address         string
	Username        string
	Password        string
	Database        string
	Collation       uint8
	SSLMode         string // "disable", "enable", or "require"
	MultiStatements bool
	ConnectAttrs    map[string]string
	ConnectTimeout  time.Duration
	MaxPacketSize   uint32
	TLSConfig       *tls.Config
	Metrics         *observability.Collector
}

func (c Config) isUnixSocket() bool {
	return strings.HasSuffix(c.Address, ".sock") || strings.Contains(c.Address, "/")
}

func (c Config) sslMode() (algo.SSLMode, error) {
	switch c.SSLMode {
	case "", "disable":
		return algo.SSLDisable, nil
	case "enable":
		return algo.SSLEnable, nil
	case "require":
		return algo.SSLRequire, nil
	default:
		return 0, fmt.Errorf("conn: unknown ssl_mode %q", c.SSLMode)
	}
}

// connState tracks spec.md §7's propagation policy: a fatal error
// (I/O failure, protocol violation, cancellation) leaves the
// connection not-connected; a server error on a command does not.
type connState int

const (
	stateReady connState = iota
	stateNotConnected
)

// Conn is one authenticated connection to a MySQL server.
type Conn struct {
	engine    *engine.Engine
	transport *engine.NetTransport
	ch        *algo.Channel
	result    algo.HandshakeResult
	metrics   *observability.Collector

	state connState
}

// Dial opens a TCP or UNIX-socket connection, runs the handshake
// algorithm to completion, and returns a ready connection.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	network := "tcp"
	if cfg.isUnixSocket() {
		network = "unix"
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	dialer := net.Dialer{KeepAlive: 30 * time.Second}
	netConn, err := dialer.DialContext(ctx, network, cfg.Address)
	if err != nil {
		cfg.Metrics.HandshakeCompleted("network_error", 0)
		if ctx.Err() != nil {
			return nil, gomysql.New(gomysql.KindTimeout, err)
		}
		return nil, gomysql.New(gomysql.KindClientError, err)
	}

	return NewFromConn(ctx, netConn, cfg)
}

// NewFromConn runs the handshake algorithm over an already-connected
// net.Conn — a caller-supplied dialer, a listener's accepted
// connection, or (in tests) an in-memory net.Pipe half — and returns a
// ready connection. Dial is a thin wrapper over this for the common
// TCP/UNIX-socket case.
func NewFromConn(ctx context.Context, netConn net.Conn, cfg Config) (*Conn, error) {
	network := "tcp"
	if cfg.isUnixSocket() {
		network = "unix"
	}

	transport := engine.NewNetTransport(netConn, cfg.TLSConfig)
	ch := algo.NewChannel()
	eng := engine.New(transport, ch)

	sslMode, serr := cfg.sslMode()
	if serr != nil {
		netConn.Close()
		return nil, gomysql.New(gomysql.KindClientError, serr)
	}

	maxPacket := cfg.MaxPacketSize
	if maxPacket == 0 {
		maxPacket = 0x01000000
	}

	params := algo.HandshakeParams{
		Username:        cfg.Username,
		Password:        []byte(cfg.Password),
		Database:        cfg.Database,
		Collation:       cfg.Collation,
		SSLMode:         sslMode,
		IsUnixSocket:    network == "unix",
		MultiStatements: cfg.MultiStatements,
		MaxPacketSize:   maxPacket,
		ConnectAttrs:    cfg.ConnectAttrs,
	}

	start := time.Now()
	hs := algo.NewHandshakeAlgo(ch, params)
	if err := eng.Run(ctx, hs); err != nil {
		netConn.Close()
		cfg.Metrics.HandshakeCompleted(handshakeFailureReason(err), time.Since(start))
		return nil, err
	}
	cfg.Metrics.HandshakeCompleted("ok", time.Since(start))

	return &Conn{
		engine:    eng,
		transport: transport,
		ch:        ch,
		result:    hs.Result(),
		metrics:   cfg.Metrics,
		state:     stateReady,
	}, nil
}

func handshakeFailureReason(err error) string {
	switch gomysql.KindOf(err) {
	case gomysql.KindAuthPluginRequiresSSL, gomysql.KindUnknownAuthPlugin, gomysql.KindServerError:
		return "auth_failed"
	case gomysql.KindServerUnsupported:
		return "ssl_failed"
	default:
		return "network_error"
	}
}

// HandshakeResult exposes the negotiated capabilities and character
// set, mainly so the pool can decide whether a reconnect needs
// different settings.
func (c *Conn) HandshakeResult() algo.HandshakeResult { return c.result }

// metadataMode always returns MetadataFull: gomysql never negotiates
// CLIENT_OPTIONAL_RESULTSET_METADATA and has no per-connection switch.
func (c *Conn) metadataMode() value.MetadataMode { return value.MetadataFull }

func (c *Conn) run(ctx context.Context, a algo.Algo) error {
	if c.state != stateReady {
		return gomysql.New(gomysql.KindClientError, fmt.Errorf("conn: not connected"))
	}
	err := c.engine.Run(ctx, a)
	if gomysql.IsFatal(err) {
		c.state = stateNotConnected
	}
	return err
}

func (c *Conn) withoutDeprecateEOF() bool {
	return !c.result.Capabilities.Has(protocol.CapDeprecateEOF)
}

// Query runs sql via COM_QUERY and returns every resultset it
// produces (spec.md §4.7's execute/read-resultset-head/read-rows
// loop, chained across multiple statements via has_more_results).
func (c *Conn) Query(ctx context.Context, sql string) ([]*value.Resultset, error) {
	start := time.Now()
	a := algo.NewQueryAlgo(c.ch, sql, c.metadataMode())
	if c.withoutDeprecateEOF() {
		a.WithoutDeprecateEOF()
	}
	if err := c.run(ctx, a); err != nil {
		return nil, err
	}
	c.metrics.QueryCompleted("query", time.Since(start))
	return a.Resultsets(), nil
}

// Prepare issues COM_STMT_PREPARE and returns a Stmt bound to this
// connection.
func (c *Conn) Prepare(ctx context.Context, sql string) (*Stmt, error) {
	a := algo.NewPrepareAlgo(c.ch, sql, c.metadataMode())
	if c.withoutDeprecateEOF() {
		a.WithoutDeprecateEOF()
	}
	if err := c.run(ctx, a); err != nil {
		return nil, err
	}
	c.metrics.PreparedStatementOpened()
	return &Stmt{conn: c, stmt: a.Result()}, nil
}

// Ping drives COM_PING, the pool's idle health-check primitive
// (spec.md §4.9).
func (c *Conn) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.run(ctx, algo.NewPingAlgo(c.ch))
	if err == nil {
		c.metrics.PingCompleted(time.Since(start))
	}
	return err
}

// Reset drives COM_RESET_CONNECTION, clearing session state (current
// schema aside) without a full reconnect; used by reset() and the
// pool's reset-on-return path.
func (c *Conn) Reset(ctx context.Context) error {
	return c.run(ctx, algo.NewResetAlgo(c.ch))
}

// Pipeline batches commands onto the wire before reading any replies,
// then reads each stage's resultset head in submission order
// (SPEC_FULL's pipeline execution addition).
func (c *Conn) Pipeline(ctx context.Context, commands [][]byte) ([]algo.PipelineHead, error) {
	a := algo.NewPipelineAlgo(c.ch, commands)
	if err := c.run(ctx, a); err != nil {
		return nil, err
	}
	return a.Heads(), nil
}

// Close drives COM_QUIT and releases the underlying transport. Close
// does not wait for a server reply (spec.md: the server never sends
// one).
func (c *Conn) Close(ctx context.Context) error {
	if c.state == stateReady {
		_ = c.engine.Run(ctx, algo.NewQuitAlgo(c.ch))
	}
	c.state = stateNotConnected
	return c.transport.Close()
}

// Stmt is a prepared statement bound to the Conn that created it.
type Stmt struct {
	conn *Conn
	stmt algo.PreparedStatement
}

// ParamCount and ColumnCount expose the prepare response's metadata
// counts, used by callers validating argument lists ahead of Execute.
func (s *Stmt) ParamCount() int        { return len(s.stmt.Params) }
func (s *Stmt) ColumnCount() int       { return len(s.stmt.Columns) }
func (s *Stmt) Params() []value.Field  { return s.stmt.Params }
func (s *Stmt) Columns() []value.Field { return s.stmt.Columns }

// Execute drives COM_STMT_EXECUTE with the given parameter values.
// unsigned[i] marks whether params[i] should be encoded as unsigned
// (relevant only for Int64 values; Uint64 values are always unsigned).
func (s *Stmt) Execute(ctx context.Context, params []value.Value, unsigned []bool) ([]*value.Resultset, error) {
	start := time.Now()
	c := s.conn
	a := algo.NewStmtExecuteAlgo(c.ch, s.stmt.StatementID, len(s.stmt.Params), params, unsigned, c.metadataMode())
	if c.withoutDeprecateEOF() {
		a.WithoutDeprecateEOF()
	}
	if err := c.run(ctx, a); err != nil {
		return nil, err
	}
	c.metrics.QueryCompleted("stmt_execute", time.Since(start))
	return a.Resultsets(), nil
}

// Reset drives COM_STMT_RESET, clearing any buffered long-data
// without discarding the prepared statement itself.
func (s *Stmt) Reset(ctx context.Context) error {
	return s.conn.run(ctx, algo.NewStmtResetAlgo(s.conn.ch, s.stmt.StatementID))
}

// Close drives COM_STMT_CLOSE. The server sends no reply (spec.md
// §4.8), so this only fails if the connection is no longer ready or
// the write itself fails.
func (s *Stmt) Close(ctx context.Context) error {
	err := s.conn.run(ctx, algo.NewCloseStmtAlgo(s.conn.ch, s.stmt.StatementID))
	s.conn.metrics.PreparedStatementClosed()
	return err
}
