// Package quic implements the optional secondary transport for the wire
// protocol of §6, for nodes that opt into QUIC for chunk-heavy transfers.
//
// QUIC mandates TLS 1.3 at the protocol level regardless of any
// application-level security requirement, so a listener generates an
// ephemeral self-signed certificate at startup purely to satisfy that
// handshake; dialers skip certificate verification. Neither side treats
// this as an authentication or confidentiality guarantee — per §1
// Non-goals, peer identity is established only by drop-metadata
// signatures, never by the transport.
package quic

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/syncrnet/syncr/pkg/transport"
)

const alpnProto = "syncr/1"

// Transport implements the QUIC transport.
type Transport struct{}

// New creates a new QUIC transport.
func New() transport.Transport {
	return &Transport{}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "quic" }

// Listen starts listening for QUIC connections on addr.
func (t *Transport) Listen(ctx context.Context, addr string) (transport.Listener, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP address: %w", err)
	}
	tlsConfig, err := generateEphemeralTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("generate listener TLS config: %w", err)
	}
	listener, err := quic.ListenAddr(udpAddr.String(), tlsConfig, &quic.Config{
		MaxIdleTimeout:  5 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create QUIC listener: %w", err)
	}
	return &Listener{listener: listener}, nil
}

// Dial establishes a QUIC connection to addr.
func (t *Transport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tlsConfig := &tls.Config{
		NextProtos:         []string{alpnProto},
		InsecureSkipVerify: true,
	}
	connection, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{
		MaxIdleTimeout:  5 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("dial QUIC connection: %w", err)
	}
	stream, err := connection.OpenStreamSync(ctx)
	if err != nil {
		connection.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &Conn{connection: connection, stream: stream}, nil
}

// Listener wraps a QUIC listener.
type Listener struct {
	listener *quic.Listener
}

// Accept waits for and returns the next connection.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	connection, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := connection.AcceptStream(ctx)
	if err != nil {
		connection.CloseWithError(0, "failed to accept stream")
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return &Conn{connection: connection, stream: stream}, nil
}

// Close closes the listener.
func (l *Listener) Close() error { return l.listener.Close() }

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Conn wraps a QUIC connection and its single stream.
type Conn struct {
	connection *quic.Conn
	stream     *quic.Stream
}

func (c *Conn) Read(b []byte) (int, error)  { return c.stream.Read(b) }
func (c *Conn) Write(b []byte) (int, error) { return c.stream.Write(b) }

func (c *Conn) Close() error {
	if err := c.stream.Close(); err != nil {
		c.connection.CloseWithError(0, "stream close error")
		return err
	}
	return c.connection.CloseWithError(0, "normal close")
}

func (c *Conn) LocalAddr() net.Addr  { return c.connection.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.connection.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error      { return c.stream.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

// CloseWrite half-closes the stream's write side.
func (c *Conn) CloseWrite() error { return c.stream.Close() }

func generateEphemeralTLSConfig() (*tls.Config, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProto},
	}, nil
}

func init() {
	transport.DefaultRegistry.Register("quic", New())
}
