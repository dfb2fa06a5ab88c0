package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/syncrnet/syncr/pkg/listener"
	"github.com/syncrnet/syncr/pkg/node"
	"github.com/syncrnet/syncr/pkg/peerstore"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
	"github.com/syncrnet/syncr/pkg/transport/tcp"
)

// staticPeers is a peerstore.Store stub that always reports one fixed peer.
type staticPeers struct {
	addr string
}

func (s *staticPeers) Announce(context.Context, []byte, []byte, string) error { return nil }
func (s *staticPeers) Lookup(context.Context, []byte) ([]peerstore.PeerRecord, error) {
	return []peerstore.PeerRecord{{Addr: s.addr}}, nil
}
func (s *staticPeers) SetKey(context.Context, []byte, []byte) error { return nil }
func (s *staticPeers) GetKey(context.Context, []byte) ([]byte, error) {
	return nil, nil
}

func TestInitDropThenSyncDropRoundTrip(t *testing.T) {
	ownerRoot := t.TempDir()
	downloaderRoot := t.TempDir()

	if err := os.WriteFile(filepath.Join(ownerRoot, "hello.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatalf("seed owner file: %v", err)
	}
	sub := filepath.Join(ownerRoot, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "nested.bin"), make([]byte, 100), 0644); err != nil {
		t.Fatalf("seed nested file: %v", err)
	}

	identity, err := syncrcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	ownerRegDB := filepath.Join(t.TempDir(), "owner.db")
	ownerReg, err := registry.Open(ownerRegDB)
	if err != nil {
		t.Fatalf("open owner registry: %v", err)
	}
	defer ownerReg.Close()

	ownerEngine := New(nil, nil, ownerReg, Config{ChunkSize: 16})
	meta, err := ownerEngine.InitDrop(identity, "demo", ownerRoot, nil)
	if err != nil {
		t.Fatalf("InitDrop: %v", err)
	}
	if len(meta.Files) != 2 {
		t.Fatalf("expected 2 files tracked, got %d", len(meta.Files))
	}

	store := node.NewStore(ownerReg)
	server := listener.NewServer(store, nil)
	tr := tcp.New()

	ln, err := tr.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, ln)

	downloaderRegDB := filepath.Join(t.TempDir(), "down.db")
	downloaderReg, err := registry.Open(downloaderRegDB)
	if err != nil {
		t.Fatalf("open downloader registry: %v", err)
	}
	defer downloaderReg.Close()

	peers := &staticPeers{addr: ln.Addr().String()}
	downloaderEngine := New(tr, peers, downloaderReg, Config{
		ChunkSize:           16,
		MaxConcurrentFiles:  2,
		MaxConcurrentChunks: 4,
		MaxChunksPerPeer:    8,
	})

	syncCtx, syncCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer syncCancel()
	if err := downloaderEngine.SyncDrop(syncCtx, meta.DropID, downloaderRoot); err != nil {
		t.Fatalf("SyncDrop: %v", err)
	}

	gotHello, err := os.ReadFile(filepath.Join(downloaderRoot, "hello.txt"))
	if err != nil {
		t.Fatalf("read synced hello.txt: %v", err)
	}
	if string(gotHello) != "hello world" {
		t.Fatalf("hello.txt content mismatch: got %q", gotHello)
	}

	gotNested, err := os.ReadFile(filepath.Join(downloaderRoot, "sub", "nested.bin"))
	if err != nil {
		t.Fatalf("read synced nested.bin: %v", err)
	}
	if len(gotNested) != 100 {
		t.Fatalf("nested.bin length mismatch: got %d want 100", len(gotNested))
	}
}

func TestPublishUpdateAdvancesVersion(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	identity, err := syncrcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	regDB := filepath.Join(t.TempDir(), "reg.db")
	reg, err := registry.Open(regDB)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	defer reg.Close()

	engine := New(nil, nil, reg, Config{ChunkSize: 16})
	v1, err := engine.InitDrop(identity, "demo", root, nil)
	if err != nil {
		t.Fatalf("InitDrop: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("v2 content, longer"), 0644); err != nil {
		t.Fatalf("update file: %v", err)
	}

	v2, err := engine.PublishUpdate(identity.PrivateKey, v1, root, nil)
	if err != nil {
		t.Fatalf("PublishUpdate: %v", err)
	}
	if v2.Version.Version != v1.Version.Version+1 {
		t.Fatalf("expected version to advance by one, got %d -> %d", v1.Version.Version, v2.Version.Version)
	}
	if v2.Version.Nonce == v1.Version.Nonce {
		t.Fatalf("expected a fresh nonce on publish")
	}
	if err := v2.Verify(); err != nil {
		t.Fatalf("published version does not verify: %v", err)
	}
}
