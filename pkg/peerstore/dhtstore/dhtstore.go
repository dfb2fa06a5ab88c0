// Package dhtstore implements the in-process, TTL-culled peer/key store
// backend of §4.6. It holds drop-peer announcements and node public keys
// in memory, expiring entries past their TTL, and re-announces its own
// presence on a periodic loop.
//
// The refresh-loop shape is adapted from the teacher's
// internal/dht.PresenceManager.refreshLoop/publishPresence
// (internal/dht/presence.go): repeat the announcement on a ticker until the
// context is canceled. Start itself announces nothing; the first entry for
// a drop is the one recorded by the Announce call.
//
// The TTL-culling rule itself — and the clock-skew clamp that rejects an
// entry whose timestamp is in the future — is carried over from
// original_source's DropPeerDHTStorage.cull_entry
// (external_interface/dht_util.py): an entry survives only while
// ts + ttl > now AND ts < now, so a record backdated or postdated by a
// misbehaving clock never lingers or is trusted prematurely.
package dhtstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/peerstore"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

type peerEntry struct {
	record peerstore.PeerRecord
	ts     time.Time
}

type keyEntry struct {
	der []byte
	ts  time.Time
}

// Store is an in-memory, TTL-culled peer/key store.
type Store struct {
	mu    sync.RWMutex
	peers map[string][]peerEntry // base64(dropID) -> entries
	keys  map[string]keyEntry    // base64(nodeID) -> entry

	ttl time.Duration

	selfAddr   string
	selfNodeID []byte
	selfDrops  map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a DHT-flavored store with the given entry TTL (defaults to
// constants.DefaultTrackerDropTTL when ttl is zero, matching the same TTL
// the tracker backend's clients would otherwise use).
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = constants.DefaultTrackerDropTTL
	}
	return &Store{
		peers:     make(map[string][]peerEntry),
		keys:      make(map[string]keyEntry),
		ttl:       ttl,
		selfDrops: make(map[string]bool),
	}
}

// Start begins the periodic re-announce loop for every drop previously
// passed to Announce, refreshing at ttl/2-1, matching the original
// implementation's send_drops_to_dps cadence.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.refreshLoop(ctx)
}

// Stop ends the re-announce loop.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Store) refreshLoop(ctx context.Context) {
	defer close(s.done)
	interval := s.ttl/2 - time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reannounceAll()
		}
	}
}

func (s *Store) reannounceAll() {
	s.mu.Lock()
	drops := make([]string, 0, len(s.selfDrops))
	for k := range s.selfDrops {
		drops = append(drops, k)
	}
	addr := s.selfAddr
	nodeID := s.selfNodeID
	s.mu.Unlock()

	for _, key := range drops {
		dropID, err := syncrcrypto.B64Decode(key)
		if err != nil {
			continue
		}
		_ = s.Announce(context.Background(), dropID, nodeID, addr)
	}
}

// Announce records that nodeID has dropID at addr, refreshing the TTL on
// every call.
func (s *Store) Announce(_ context.Context, dropID []byte, nodeID []byte, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := syncrcrypto.B64Encode(dropID)
	s.selfDrops[key] = true
	s.selfAddr = addr
	s.selfNodeID = nodeID

	now := time.Now()
	entries := s.peers[key]
	entries = cullLocked(entries, s.ttl, now)
	// A repeat announcement of the same (nodeID, addr) replaces its entry,
	// so the stored peers stay a set of distinct triples.
	kept := entries[:0]
	for _, e := range entries {
		if string(e.record.NodeID) != string(nodeID) || e.record.Addr != addr {
			kept = append(kept, e)
		}
	}
	entries = append(kept, peerEntry{
		record: peerstore.PeerRecord{NodeID: nodeID, Addr: addr, FirstSeen: now},
		ts:     now,
	})
	s.peers[key] = entries
	return nil
}

// Lookup returns every non-expired peer known for dropID.
func (s *Store) Lookup(_ context.Context, dropID []byte) ([]peerstore.PeerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := syncrcrypto.B64Encode(dropID)
	now := time.Now()
	entries := cullLocked(s.peers[key], s.ttl, now)
	s.peers[key] = entries

	out := make([]peerstore.PeerRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record)
	}
	return out, nil
}

// SetKey publishes nodeID's public key.
func (s *Store) SetKey(_ context.Context, nodeID []byte, publicKeyDER []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[syncrcrypto.B64Encode(nodeID)] = keyEntry{der: publicKeyDER, ts: time.Now()}
	return nil
}

// GetKey resolves nodeID to its public key.
func (s *Store) GetKey(_ context.Context, nodeID []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[syncrcrypto.B64Encode(nodeID)]
	if !ok {
		return nil, fmt.Errorf("no key known for node %s", syncrcrypto.B64Encode(nodeID))
	}
	return e.der, nil
}

// cullLocked drops entries whose TTL has expired or whose timestamp is
// implausibly in the future, matching cull_entry's
// "entry.ts + ttl > now and entry.ts < now" survival condition.
func cullLocked(entries []peerEntry, ttl time.Duration, now time.Time) []peerEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.ts.Add(ttl).After(now) && e.ts.Before(now) {
			kept = append(kept, e)
		}
	}
	return kept
}
