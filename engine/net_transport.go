package engine

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// NetTransport adapts a net.Conn (TCP or UNIX) to the Transport
// interface, grounded on the teacher's plain net.Conn read/write
// helpers (readMySQLPacket/writeMySQLPacket) but generalized to
// support a TLS upgrade mid-connection and context cancellation.
type NetTransport struct {
	conn      net.Conn
	tlsConfig *tls.Config
}

// NewNetTransport wraps an already-dialed connection. tlsConfig may be
// nil if SSLHandshake will never be called (ssl_mode = disable).
func NewNetTransport(conn net.Conn, tlsConfig *tls.Config) *NetTransport {
	return &NetTransport{conn: conn, tlsConfig: tlsConfig}
}

// Conn returns the current underlying connection (the original net.Conn
// before SSLHandshake, the *tls.Conn after).
func (t *NetTransport) Conn() net.Conn { return t.conn }

func (t *NetTransport) withDeadline(ctx context.Context, fn func() error) error {
	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetDeadline(dl)
		defer t.conn.SetDeadline(time.Time{})
	} else if ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				t.conn.SetDeadline(time.Now())
			case <-stop:
			}
		}()
	}
	return fn()
}

func (t *NetTransport) ReadSome(ctx context.Context, buf []byte) (int, error) {
	var n int
	err := t.withDeadline(ctx, func() error {
		var rerr error
		n, rerr = t.conn.Read(buf)
		return rerr
	})
	return n, err
}

func (t *NetTransport) WriteAll(ctx context.Context, data []byte) error {
	return t.withDeadline(ctx, func() error {
		_, err := t.conn.Write(data)
		return err
	})
}

// SSLHandshake upgrades the connection in place, replacing conn with a
// *tls.Conn once the handshake completes (spec.md §4.6 rule 2).
func (t *NetTransport) SSLHandshake(ctx context.Context) error {
	tlsConn := tls.Client(t.conn, t.tlsConfig)
	err := t.withDeadline(ctx, func() error {
		return tlsConn.HandshakeContext(ctx)
	})
	if err != nil {
		return err
	}
	t.conn = tlsConn
	return nil
}

// SSLShutdown sends the TLS close_notify alert; it does not close the
// underlying transport, matching crypto/tls.Conn.Close semantics being
// reserved for the façade's Close().
func (t *NetTransport) SSLShutdown(ctx context.Context) error {
	tlsConn, ok := t.conn.(*tls.Conn)
	if !ok {
		return nil
	}
	return t.withDeadline(ctx, tlsConn.CloseWrite)
}

func (t *NetTransport) Close() error {
	return t.conn.Close()
}
