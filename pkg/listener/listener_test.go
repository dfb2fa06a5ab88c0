package listener_test

import (
	"context"
	"testing"
	"time"

	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/filemeta"
	"github.com/syncrnet/syncr/pkg/listener"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
	"github.com/syncrnet/syncr/pkg/transport/tcp"
	"github.com/syncrnet/syncr/pkg/wireproto"
)

// fakeStore is a minimal listener.Store backed entirely by in-memory maps,
// used to exercise the server's request dispatch without touching disk.
type fakeStore struct {
	entry registry.Entry
	meta  *dropmeta.DropMetadata
	files map[[32]byte]*filemeta.FileMetadata
	chunk []byte
}

func (f *fakeStore) RegistryEntry(dropID []byte) (registry.Entry, error) { return f.entry, nil }
func (f *fakeStore) LatestDropMetadata(dropID []byte) (*dropmeta.DropMetadata, error) {
	return f.meta, nil
}
func (f *fakeStore) FileMetadataByHash(dropID []byte, fileHash [32]byte) (*filemeta.FileMetadata, error) {
	return f.files[fileHash], nil
}
func (f *fakeStore) ChunkIndices(rootDir string, fileHash [32]byte, fm *filemeta.FileMetadata) ([]int, error) {
	return []int{0}, nil
}
func (f *fakeStore) ReadChunk(rootDir string, fm *filemeta.FileMetadata, chunkIndex int) ([]byte, error) {
	return f.chunk, nil
}
func (f *fakeStore) AcceptNewDropMetadata(dropID []byte, encoded []byte) error { return nil }

func TestServeHandlesDropMetadataRequest(t *testing.T) {
	identity, err := syncrcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	dropID, err := dropmeta.NewDropID(identity.ID())
	if err != nil {
		t.Fatalf("NewDropID: %v", err)
	}
	meta := &dropmeta.DropMetadata{
		DropID:       dropID,
		Name:         "demo",
		PrimaryOwner: syncrcrypto.EncodePublicKey(identity.PublicKey),
		Version:      dropmeta.DropVersion{Version: 1, Nonce: 7},
	}
	if err := meta.Sign(identity.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	store := &fakeStore{meta: meta}
	server := listener.NewServer(store, nil)
	tr := tcp.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go server.Serve(ctx, ln)

	conn, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	req := wireproto.NewRequest(wireproto.KindDropMetadata, wireproto.DropMetadataRequest{DropID: dropID})
	if err := wireproto.WriteValue(conn, req); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp wireproto.Response
	if err := wireproto.ReadValue(conn, &resp); err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if resp.Result != wireproto.ResultOK {
		t.Fatalf("expected OK, got %v (error: %s)", resp.Result, resp.Error)
	}
}

func TestServeRejectsUnsupportedProtocolVersion(t *testing.T) {
	store := &fakeStore{}
	server := listener.NewServer(store, nil)
	tr := tcp.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go server.Serve(ctx, ln)

	conn, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	req := &wireproto.Request{ProtocolVersion: 99, Kind: wireproto.KindDropMetadata, Body: wireproto.DropMetadataRequest{}}
	if err := wireproto.WriteValue(conn, req); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	conn.CloseWrite()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp wireproto.Response
	if err := wireproto.ReadValue(conn, &resp); err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if resp.Result != wireproto.ResultError {
		t.Fatalf("expected ERROR for unsupported protocol version, got %v", resp.Result)
	}
}
