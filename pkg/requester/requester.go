// Package requester implements the client side of §4.8: given an ordered
// list of candidate peers, send one request and return the first successful
// response, advancing to the next candidate on any socket failure, decode
// failure, or semantic ERROR result.
//
// Adapted from the teacher's ContentFetcher.fetchChunk/fetchChunkFromProvider
// (pkg/content/fetcher.go), which tries each provider in turn for a single
// chunk. The teacher's version waits on an async response channel fed by a
// pub/sub network; this version dials a fresh connection per candidate and
// runs the request/response exchange synchronously, matching §6's
// one-shot TCP framing.
package requester

import (
	"context"
	"fmt"

	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/transport"
	"github.com/syncrnet/syncr/pkg/wireproto"
)

// Peer is a dialable address for one candidate.
type Peer struct {
	Addr string
}

// Do sends req to each peer in order over t, returning the first OK
// response. Every failure (dial, write, read, decode, semantic ERROR)
// advances to the next peer; if every peer fails, the last error is
// returned wrapped in a CodePeerFailure SyncError.
func Do(ctx context.Context, t transport.Transport, peers []Peer, req *wireproto.Request) (*wireproto.Response, error) {
	if len(peers) == 0 {
		return nil, syncerr.NewNotFound("no candidate peers to request from")
	}

	var lastErr error
	for _, peer := range peers {
		resp, err := doOnce(ctx, t, peer, req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Result == wireproto.ResultError {
			lastErr = syncerr.NewPeerFailure(resp.Error, peer.Addr, nil)
			continue
		}
		return resp, nil
	}
	return nil, syncerr.NewPeerFailure("all candidate peers failed", "", lastErr)
}

func doOnce(ctx context.Context, t transport.Transport, peer Peer, req *wireproto.Request) (*wireproto.Response, error) {
	conn, err := t.Dial(ctx, peer.Addr)
	if err != nil {
		return nil, syncerr.NewPeerFailure("dial peer", peer.Addr, err)
	}
	defer conn.Close()

	if err := wireproto.WriteValue(conn, req); err != nil {
		return nil, fmt.Errorf("send request to %s: %w", peer.Addr, err)
	}
	if err := conn.CloseWrite(); err != nil {
		return nil, syncerr.NewPeerFailure("half-close write side", peer.Addr, err)
	}

	var resp wireproto.Response
	if err := wireproto.ReadValue(conn, &resp); err != nil {
		return nil, fmt.Errorf("read response from %s: %w", peer.Addr, err)
	}
	return &resp, nil
}
