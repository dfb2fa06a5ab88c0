package quic

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestTransportName(t *testing.T) {
	if New().Name() != "quic" {
		t.Fatalf("expected transport name quic")
	}
}

func TestListenReturnsUDPAddr(t *testing.T) {
	tr := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if _, ok := ln.Addr().(*net.UDPAddr); !ok {
		t.Fatalf("expected a UDP address, got %T", ln.Addr())
	}
}

func TestListenDialStreamRoundTrip(t *testing.T) {
	tr := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			serverDone <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		serverDone <- data
		conn.Write([]byte("pong"))
		conn.CloseWrite()
	}()

	conn, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(reply) != "pong" {
		t.Fatalf("expected pong, got %q", reply)
	}

	got := <-serverDone
	if string(got) != "ping" {
		t.Fatalf("server expected ping, got %q", got)
	}
}
