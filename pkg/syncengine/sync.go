package syncengine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/blobstore"
	"github.com/syncrnet/syncr/pkg/concurrency"
	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/filemeta"
	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/peerstore"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/requester"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/wireproto"
)

// SyncDrop fetches and verifies every file of dropID into saveDir, following
// §4.9's six steps.
func (e *Engine) SyncDrop(ctx context.Context, dropID []byte, saveDir string) error {
	// 1. Query the peer store for candidate peers, shuffled to avoid
	// hot-spotting any one of them.
	records, err := e.Peers.Lookup(ctx, dropID)
	if err != nil {
		return err
	}
	peers := shufflePeers(records)

	// 2. Ensure the local drop root exists.
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return syncerr.NewIO("create drop root", saveDir, err)
	}

	// 3. Fetch drop metadata, local-then-network, and persist it as the
	// latest version.
	meta, err := e.fetchDropMetadata(ctx, dropID, saveDir, peers)
	if err != nil {
		return err
	}
	if e.Registry != nil {
		entry := registry.Entry{DropID: dropID, RootDir: saveDir, Version: meta.Version}
		if existing, getErr := e.Registry.Get(dropID); getErr == nil {
			entry.IsOwner = existing.IsOwner
		}
		if err := e.Registry.Put(entry); err != nil {
			return err
		}
	}

	// 4. Spawn one file task per (relpath, file_hash) entry, capped at
	// MaxConcurrentFiles in flight.
	entries := make([]dropmeta.FileEntry, 0, len(meta.Files))
	for _, entry := range meta.Files {
		entries = append(entries, entry)
	}
	results, err := concurrency.BoundedGather(ctx, entries, int64(e.Config.MaxConcurrentFiles),
		func(ctx context.Context, entry dropmeta.FileEntry) (struct{}, error) {
			return struct{}{}, e.syncFile(ctx, dropID, saveDir, entry, peers)
		})
	if err != nil {
		return err
	}

	// 6. Report success iff every file completed.
	var failed []string
	for i, r := range results {
		if r.Err != nil {
			failed = append(failed, entries[i].RelPath)
		}
	}
	if len(failed) > 0 {
		return syncerr.NewPeerFailure(fmt.Sprintf("%d file(s) failed to sync: %v", len(failed), failed), "", nil)
	}
	return nil
}

func (e *Engine) fetchDropMetadata(ctx context.Context, dropID []byte, saveDir string, peers []requester.Peer) (*dropmeta.DropMetadata, error) {
	if local, err := dropmeta.ReadLatest(layout.DropMetaDir(saveDir), dropID); err == nil {
		if local.Verify() == nil {
			return local, nil
		}
	}

	req := wireproto.NewRequest(wireproto.KindDropMetadata, wireproto.DropMetadataRequest{DropID: dropID})
	resp, err := requester.Do(ctx, e.Transport, peers, req)
	if err != nil {
		return nil, err
	}
	var reply wireproto.DropMetadataReply
	if err := redecodeBody(resp.Body, &reply); err != nil {
		return nil, err
	}
	meta, err := dropmeta.Decode(reply.EncodedMeta)
	if err != nil {
		return nil, err
	}
	if err := meta.Verify(); err != nil {
		return nil, err
	}

	dropDir := layout.DropMetaDir(saveDir)
	if err := os.MkdirAll(dropDir, 0755); err != nil {
		return nil, syncerr.NewIO("create drop metadata directory", dropDir, err)
	}
	if _, err := meta.WriteFile(dropDir); err != nil {
		return nil, err
	}
	if err := meta.WriteLatest(dropDir); err != nil {
		return nil, err
	}
	return meta, nil
}

// syncFile fetches entry's file metadata, then repeatedly asks peers for
// their chunk lists, partitions needed chunks among them, downloads, and
// verifies, until the file is complete or a round makes no progress.
func (e *Engine) syncFile(ctx context.Context, dropID []byte, saveDir string, entry dropmeta.FileEntry, peers []requester.Peer) error {
	fm, err := e.fetchFileMetadata(ctx, dropID, saveDir, entry, peers)
	if err != nil {
		return err
	}

	fullPath := layout.FilePath(saveDir, entry.RelPath)
	if err := blobstore.CreateFile(fullPath, fm.FileLen); err != nil {
		return err
	}

	activePeers := append([]requester.Peer{}, peers...)
	for {
		needed, err := fm.NeededChunks(saveDir)
		if err != nil {
			return err
		}
		if len(needed) == 0 {
			break
		}
		if len(activePeers) == 0 {
			return syncerr.NewPeerFailure(
				fmt.Sprintf("no peers left to fetch remaining chunks of %s", entry.RelPath), "", nil)
		}

		assignment := e.planRound(ctx, dropID, fm.FileHash, needed, activePeers)
		if len(assignment) == 0 {
			// a round that adds zero new chunks terminates the loop: no
			// progress is possible with the current peer set.
			break
		}

		type job struct {
			peer  requester.Peer
			index int
		}
		var jobs []job
		for peer, indices := range assignment {
			for _, idx := range indices {
				jobs = append(jobs, job{peer: peer, index: idx})
			}
		}

		var finishMu sync.Mutex
		results, err := concurrency.BoundedGather(ctx, jobs, int64(e.Config.MaxConcurrentChunks),
			func(ctx context.Context, j job) (struct{}, error) {
				return struct{}{}, e.fetchChunk(ctx, dropID, fm, saveDir, j.index, j.peer, &finishMu)
			})
		if err != nil {
			return err
		}

		progressed := false
		badPeers := make(map[string]bool)
		for i, r := range results {
			if r.Err == nil {
				progressed = true
				continue
			}
			// a verification failure against a peer abandons the current
			// download and skips that peer for the remainder of this file.
			var se *syncerr.SyncError
			if errors.As(r.Err, &se) && se.Code == syncerr.CodeVerification {
				badPeers[jobs[i].peer.Addr] = true
			}
		}
		if len(badPeers) > 0 {
			activePeers = filterPeers(activePeers, badPeers)
		}
		if !progressed {
			break
		}
	}

	complete, err := fm.IsFileComplete(saveDir)
	if err != nil {
		return err
	}
	if !complete {
		return syncerr.NewPeerFailure(fmt.Sprintf("file %s incomplete after exhausting peers", entry.RelPath), "", nil)
	}
	return blobstore.MarkFileComplete(fullPath)
}

// planRound asks each active peer for its chunk list and assigns up to
// MaxChunksPerPeer still-needed chunks to each, without overlap.
func (e *Engine) planRound(ctx context.Context, dropID []byte, fileHash [32]byte, needed []int, peers []requester.Peer) map[requester.Peer][]int {
	remaining := make(map[int]bool, len(needed))
	for _, i := range needed {
		remaining[i] = true
	}

	assignment := make(map[requester.Peer][]int)
	for _, peer := range peers {
		if len(remaining) == 0 {
			break
		}
		req := wireproto.NewRequest(wireproto.KindChunkList, wireproto.ChunkListRequest{DropID: dropID, FileHash: fileHash[:]})
		resp, err := requester.Do(ctx, e.Transport, []requester.Peer{peer}, req)
		if err != nil {
			continue
		}
		var reply wireproto.ChunkListReply
		if err := redecodeBody(resp.Body, &reply); err != nil {
			continue
		}
		have := make(map[int]bool, len(reply.ChunkIndices))
		for _, idx := range reply.ChunkIndices {
			have[idx] = true
		}

		var picked []int
		for idx := range remaining {
			if len(picked) >= e.Config.MaxChunksPerPeer {
				break
			}
			if have[idx] {
				picked = append(picked, idx)
			}
		}
		for _, idx := range picked {
			delete(remaining, idx)
		}
		if len(picked) > 0 {
			assignment[peer] = picked
		}
	}
	return assignment
}

func (e *Engine) fetchChunk(ctx context.Context, dropID []byte, fm *filemeta.FileMetadata, saveDir string, index int, peer requester.Peer, finishMu *sync.Mutex) error {
	req := wireproto.NewRequest(wireproto.KindChunk, wireproto.ChunkRequest{
		DropID:     dropID,
		FileHash:   fm.FileHash[:],
		ChunkIndex: index,
	})
	resp, err := requester.Do(ctx, e.Transport, []requester.Peer{peer}, req)
	if err != nil {
		return err
	}
	var reply wireproto.ChunkReply
	if err := redecodeBody(resp.Body, &reply); err != nil {
		return err
	}

	offset, _ := fm.ChunkRange(index)
	fullPath := layout.FilePath(saveDir, fm.RelPath)
	if err := blobstore.WriteChunk(fullPath, offset, reply.Data, fm.Hashes[index]); err != nil {
		return err
	}
	// chunk fetches of one round run concurrently and share fm's memoized set
	finishMu.Lock()
	defer finishMu.Unlock()
	return fm.FinishChunk(saveDir, index)
}

func (e *Engine) fetchFileMetadata(ctx context.Context, dropID []byte, saveDir string, entry dropmeta.FileEntry, peers []requester.Peer) (*filemeta.FileMetadata, error) {
	if local, err := filemeta.ReadFile(saveDir, entry.FileHash); err == nil {
		return local, nil
	}

	req := wireproto.NewRequest(wireproto.KindFileMetadata, wireproto.FileMetadataRequest{DropID: dropID, FileHash: entry.FileHash[:]})
	resp, err := requester.Do(ctx, e.Transport, peers, req)
	if err != nil {
		return nil, err
	}
	var reply wireproto.FileMetadataReply
	if err := redecodeBody(resp.Body, &reply); err != nil {
		return nil, err
	}
	fm, err := filemeta.Decode(reply.EncodedMeta)
	if err != nil {
		return nil, err
	}
	if err := fm.WriteFile(saveDir); err != nil {
		return nil, err
	}
	return fm, nil
}

func redecodeBody(body interface{}, out interface{}) error {
	data, err := binformat.Marshal(body)
	if err != nil {
		return err
	}
	return binformat.Unmarshal(data, out)
}

func shufflePeers(records []peerstore.PeerRecord) []requester.Peer {
	peers := make([]requester.Peer, len(records))
	for i, r := range records {
		peers[i] = requester.Peer{Addr: r.Addr}
	}
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	return peers
}

func filterPeers(peers []requester.Peer, exclude map[string]bool) []requester.Peer {
	out := make([]requester.Peer, 0, len(peers))
	for _, p := range peers {
		if !exclude[p.Addr] {
			out = append(out, p)
		}
	}
	return out
}
