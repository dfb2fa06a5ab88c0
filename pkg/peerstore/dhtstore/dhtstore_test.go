package dhtstore

import (
	"context"
	"testing"
	"time"
)

func TestAnnounceThenLookupRoundTrip(t *testing.T) {
	s := New(time.Hour)
	dropID := []byte("drop-a")
	nodeID := []byte("node-a")

	if err := s.Announce(context.Background(), dropID, nodeID, "127.0.0.1:9000"); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	peers, err := s.Lookup(context.Background(), dropID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(peers) != 1 || peers[0].Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected peers: %+v", peers)
	}
	if string(peers[0].NodeID) != "node-a" {
		t.Fatalf("expected announced node ID to round-trip, got %q", peers[0].NodeID)
	}
}

func TestCullLockedExpiresOldEntries(t *testing.T) {
	ttl := 10 * time.Millisecond
	now := time.Now()
	entries := []peerEntry{
		{ts: now.Add(-time.Hour)},             // expired
		{ts: now.Add(time.Hour)},               // future, clock-skew rejected
		{ts: now.Add(-ttl / 2)},                // still alive
	}
	kept := cullLocked(entries, ttl, now)
	if len(kept) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(kept))
	}
}

func TestSetKeyThenGetKeyRoundTrip(t *testing.T) {
	s := New(time.Hour)
	nodeID := []byte("node-a")
	der := []byte("fake-der-bytes")

	if err := s.SetKey(context.Background(), nodeID, der); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	got, err := s.GetKey(context.Background(), nodeID)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if string(got) != string(der) {
		t.Fatalf("GetKey mismatch: got %q want %q", got, der)
	}
}

func TestGetKeyUnknownReturnsError(t *testing.T) {
	s := New(time.Hour)
	if _, err := s.GetKey(context.Background(), []byte("missing")); err == nil {
		t.Fatal("expected an error for an unknown node ID")
	}
}

func TestLookupCullsExpiredEntriesOnRead(t *testing.T) {
	s := New(time.Millisecond)
	dropID := []byte("drop-b")
	if err := s.Announce(context.Background(), dropID, []byte("node-b"), "127.0.0.1:9001"); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	peers, err := s.Lookup(context.Background(), dropID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected expired entry to be culled, got %+v", peers)
	}
}
