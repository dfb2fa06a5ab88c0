// Package peerstore defines the abstract peer/key store of §4.6: a place
// to announce "I have drop X" and look up who else does, and a place to
// resolve a node ID to its public signing key. Two backends satisfy Store:
// pkg/peerstore/tracker (a thin RPC client to a remote tracker) and
// pkg/peerstore/dhtstore (an in-process, TTL-culled Kademlia-flavored
// store), selected at node-config time the way the original implementation
// picks between "tracker" and "dht" in its peer_store config file.
package peerstore

import (
	"context"
	"time"
)

// PeerRecord is one peer's advertised address for a drop, with the instant
// it was last refreshed.
type PeerRecord struct {
	NodeID    []byte
	Addr      string
	FirstSeen time.Time
}

// Store is implemented by both the tracker client and the DHT-backed
// store.
type Store interface {
	// Announce tells the store that nodeID has dropID, reachable at addr,
	// matching §4.6's announce(drop_id, (node_id, ip, port)) triple.
	Announce(ctx context.Context, dropID []byte, nodeID []byte, addr string) error

	// Lookup returns known peers for dropID.
	Lookup(ctx context.Context, dropID []byte) ([]PeerRecord, error)

	// SetKey publishes nodeID's public key (DER-encoded) for others to
	// resolve.
	SetKey(ctx context.Context, nodeID []byte, publicKeyDER []byte) error

	// GetKey resolves nodeID to its DER-encoded public key.
	GetKey(ctx context.Context, nodeID []byte) ([]byte, error)
}
