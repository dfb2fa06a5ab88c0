// Package tracker implements the client side of the tracker peer-store
// backend (§4.6, §1 Non-goals: the standalone tracker server itself is
// out of scope, only the client talking to one). Requests are canonical-
// encoded TrackerRequest/TrackerResponse values over a single TCP
// connection per call, following §6's write-then-half-close framing — the
// same shape as pkg/requester, narrowed to the tracker's four request
// kinds instead of the five peer-to-peer kinds.
package tracker

import (
	"context"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/peerstore"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/transport"
)

// RequestKind identifies one of the tracker's four operations.
type RequestKind int

const (
	KindGetKey   RequestKind = constants.TrackerGetKey
	KindPostKey  RequestKind = constants.TrackerPostKey
	KindGetPeers RequestKind = constants.TrackerGetPeers
	KindPostPeer RequestKind = constants.TrackerPostPeer
)

// Request is the envelope sent to the tracker.
type Request struct {
	Kind   RequestKind `cbor:"kind"`
	DropID []byte      `cbor:"drop_id,omitempty"`
	NodeID []byte      `cbor:"node_id,omitempty"`
	Addr   string      `cbor:"addr,omitempty"`
	KeyDER []byte      `cbor:"key_der,omitempty"`
}

// Response is the envelope returned by the tracker.
type Response struct {
	Result string                 `cbor:"result"` // "OK" or "ERROR"
	Peers  []peerstore.PeerRecord `cbor:"peers,omitempty"`
	KeyDER []byte                 `cbor:"key_der,omitempty"`
	Error  string                 `cbor:"error,omitempty"`
}

// Client talks to a single tracker address over t.
type Client struct {
	t           transport.Transport
	trackerAddr string
}

// New builds a tracker client dialing trackerAddr over t.
func New(t transport.Transport, trackerAddr string) *Client {
	return &Client{t: t, trackerAddr: trackerAddr}
}

func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	conn, err := c.t.Dial(ctx, c.trackerAddr)
	if err != nil {
		return nil, syncerr.NewPeerFailure("dial tracker", c.trackerAddr, err)
	}
	defer conn.Close()

	data, err := binformat.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(data); err != nil {
		return nil, syncerr.NewPeerFailure("write tracker request", c.trackerAddr, err)
	}
	if err := conn.CloseWrite(); err != nil {
		return nil, syncerr.NewPeerFailure("half-close tracker request", c.trackerAddr, err)
	}

	respData, err := readAll(conn)
	if err != nil {
		return nil, syncerr.NewPeerFailure("read tracker response", c.trackerAddr, err)
	}
	var resp Response
	if err := binformat.Unmarshal(respData, &resp); err != nil {
		return nil, syncerr.NewPeerFailure("decode tracker response", c.trackerAddr, err)
	}
	if resp.Result == constants.TrackerResultError {
		return nil, syncerr.NewPeerFailure(resp.Error, c.trackerAddr, nil)
	}
	return &resp, nil
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return out, nil
		}
	}
}

// Announce tells the tracker that nodeID has dropID at addr.
func (c *Client) Announce(ctx context.Context, dropID []byte, nodeID []byte, addr string) error {
	_, err := c.call(ctx, Request{Kind: KindPostPeer, DropID: dropID, NodeID: nodeID, Addr: addr})
	return err
}

// Lookup asks the tracker for dropID's known peers.
func (c *Client) Lookup(ctx context.Context, dropID []byte) ([]peerstore.PeerRecord, error) {
	resp, err := c.call(ctx, Request{Kind: KindGetPeers, DropID: dropID})
	if err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// SetKey publishes nodeID's public key to the tracker.
func (c *Client) SetKey(ctx context.Context, nodeID []byte, publicKeyDER []byte) error {
	_, err := c.call(ctx, Request{Kind: KindPostKey, NodeID: nodeID, KeyDER: publicKeyDER})
	return err
}

// GetKey resolves nodeID's public key via the tracker.
func (c *Client) GetKey(ctx context.Context, nodeID []byte) ([]byte, error) {
	resp, err := c.call(ctx, Request{Kind: KindGetKey, NodeID: nodeID})
	if err != nil {
		return nil, err
	}
	return resp.KeyDER, nil
}

var _ peerstore.Store = (*Client)(nil)
