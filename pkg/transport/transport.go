// Package transport provides the pluggable connection abstraction request
// and requester peers use to talk §6's wire protocol over: TCP as the
// primary, spec-mandated transport, with QUIC offered as an optional
// secondary transport behind the same interface (§1 Non-goals exclude
// content and transport encryption, so neither implementation authenticates
// peers at this layer — that remains the signature layer's job).
//
// Adapted from the teacher's pkg/transport/transport.go, with the TLS
// configuration plumbing stripped: nothing in this spec calls for
// encrypted sessions between peers, only for signed drop metadata.
package transport

import (
	"context"
	"net"
	"time"
)

// Transport is a connection factory for one network protocol.
type Transport interface {
	// Listen starts listening for incoming connections on addr.
	Listen(ctx context.Context, addr string) (Listener, error)

	// Dial establishes a connection to addr.
	Dial(ctx context.Context, addr string) (Conn, error)

	// Name returns the transport's registry name (e.g. "tcp", "quic").
	Name() string
}

// Listener accepts incoming connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// Conn is a bidirectional, half-closable connection, matching the shape
// the wire protocol's write-then-half-close framing needs.
type Conn interface {
	net.Conn
	// CloseWrite half-closes the write side, signaling EOF to the peer's
	// read without tearing down the whole connection.
	CloseWrite() error
}

// Config holds connection tunables shared across transports.
type Config struct {
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// DefaultConfig returns sensible defaults for dialing and listening.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 30 * time.Second,
		KeepAlive:      30 * time.Second,
	}
}

// Registry maps transport names to implementations, letting a node's
// config select "tcp" or "quic" for peer connections.
type Registry struct {
	transports map[string]Transport
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

// Register adds a transport under name.
func (r *Registry) Register(name string, t Transport) {
	r.transports[name] = t
}

// Get looks up a registered transport by name.
func (r *Registry) Get(name string) (Transport, bool) {
	t, ok := r.transports[name]
	return t, ok
}

// List returns every registered transport name.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry is populated by each transport implementation's init().
var DefaultRegistry = NewRegistry()
