package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/peerstore"
	"github.com/syncrnet/syncr/pkg/transport/tcp"
)

// startFakeTracker runs a single-shot in-process tracker that decodes one
// Request, lets handle build the Response, and writes it back.
func startFakeTracker(t *testing.T, handle func(Request) Response) string {
	t.Helper()
	tr := tcp.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			return
		}
		defer conn.Close()

		data, err := readAll(conn)
		if err != nil {
			return
		}
		var req Request
		if err := binformat.Unmarshal(data, &req); err != nil {
			return
		}

		resp := handle(req)
		out, err := binformat.Marshal(resp)
		if err != nil {
			return
		}
		conn.Write(out)
		conn.CloseWrite()
	}()

	return ln.Addr().String()
}

func TestAnnounceSendsPostPeer(t *testing.T) {
	var gotKind RequestKind
	var gotNodeID []byte
	addr := startFakeTracker(t, func(req Request) Response {
		gotKind = req.Kind
		gotNodeID = req.NodeID
		return Response{Result: constants.TrackerResultOK}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(tcp.New(), addr)
	if err := c.Announce(ctx, []byte("drop-a"), []byte("node-a"), "127.0.0.1:7000"); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if gotKind != KindPostPeer {
		t.Fatalf("expected KindPostPeer, got %v", gotKind)
	}
	if string(gotNodeID) != "node-a" {
		t.Fatalf("expected node ID to be threaded through Announce, got %q", gotNodeID)
	}
}

func TestLookupReturnsPeers(t *testing.T) {
	want := []peerstore.PeerRecord{{NodeID: []byte("n1"), Addr: "127.0.0.1:7001"}}
	addr := startFakeTracker(t, func(req Request) Response {
		return Response{Result: constants.TrackerResultOK, Peers: want}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(tcp.New(), addr)
	peers, err := c.Lookup(ctx, []byte("drop-a"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(peers) != 1 || peers[0].Addr != "127.0.0.1:7001" {
		t.Fatalf("unexpected peers: %+v", peers)
	}
}

func TestSetKeyThenGetKeyRoundTrip(t *testing.T) {
	der := []byte("fake-der-bytes")
	addr := startFakeTracker(t, func(req Request) Response {
		if req.Kind == KindPostKey {
			return Response{Result: constants.TrackerResultOK}
		}
		return Response{Result: constants.TrackerResultOK, KeyDER: der}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(tcp.New(), addr)
	if err := c.SetKey(ctx, []byte("node-a"), der); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	got, err := c.GetKey(ctx, []byte("node-a"))
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if string(got) != string(der) {
		t.Fatalf("GetKey mismatch: got %q want %q", got, der)
	}
}

func TestCallReturnsErrorOnTrackerFailure(t *testing.T) {
	addr := startFakeTracker(t, func(req Request) Response {
		return Response{Result: constants.TrackerResultError, Error: "drop unknown"}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(tcp.New(), addr)
	if _, err := c.Lookup(ctx, []byte("missing")); err == nil {
		t.Fatal("expected an error when the tracker reports failure")
	}
}

func TestCallFailsOnUnreachableTracker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := New(tcp.New(), "127.0.0.1:1")
	if err := c.Announce(ctx, []byte("drop-a"), []byte("node-a"), "127.0.0.1:7000"); err == nil {
		t.Fatal("expected an error dialing an unreachable tracker")
	}
}
