// Package tcp implements the primary, spec-mandated TCP transport for the
// wire protocol of §6: plain TCP, no TLS — adapted from the teacher's
// pkg/transport/tcp/tcp.go with the TLS handshake removed, since this spec
// carries no transport-encryption requirement.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/syncrnet/syncr/pkg/transport"
)

// Transport implements the plain TCP transport.
type Transport struct{}

// New creates a new TCP transport.
func New() transport.Transport {
	return &Transport{}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "tcp" }

// Listen starts listening for TCP connections on addr.
func (t *Transport) Listen(ctx context.Context, addr string) (transport.Listener, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve TCP address: %w", err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("create TCP listener: %w", err)
	}
	return &Listener{listener: listener}, nil
}

// Dial establishes a TCP connection to addr.
func (t *Transport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial TCP connection: %w", err)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("dialed connection is not TCP")
	}
	return &Conn{conn: tcpConn}, nil
}

// Listener wraps a TCP listener.
type Listener struct {
	listener *net.TCPListener
}

// Accept waits for and returns the next connection.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		l.listener.SetDeadline(deadline)
	}
	tcpConn, err := l.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	return &Conn{conn: tcpConn}, nil
}

// Close closes the listener.
func (l *Listener) Close() error { return l.listener.Close() }

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Conn wraps a *net.TCPConn to satisfy transport.Conn, including the
// half-close the wire protocol's request/response framing relies on.
type Conn struct {
	conn *net.TCPConn
}

func (c *Conn) Read(b []byte) (int, error)  { return c.conn.Read(b) }
func (c *Conn) Write(b []byte) (int, error) { return c.conn.Write(b) }
func (c *Conn) Close() error                { return c.conn.Close() }
func (c *Conn) LocalAddr() net.Addr         { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr        { return c.conn.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// CloseWrite half-closes the write side of the connection.
func (c *Conn) CloseWrite() error { return c.conn.CloseWrite() }

func init() {
	transport.DefaultRegistry.Register("tcp", New())
}
