// Package listener implements the server side of §4.7: a node's listener
// accepts one connection per request, serves one of the five request
// kinds of §6 (DROP_METADATA, FILE_METADATA, CHUNK_LIST, CHUNK,
// NEW_DROP_METADATA), and closes.
//
// The accept loop follows the teacher's control.Server.Serve
// (pkg/control/api.go): a goroutine per connection, context-cancellation
// aware. Framing differs from the teacher's JSON-Decoder-per-line loop
// (used there for local frontend IPC, out of scope here): each connection
// here carries exactly one canonical-encoded Request, answered with exactly
// one canonical-encoded Response, per §6's write-then-half-close framing.
package listener

import (
	"context"
	"log"

	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/filemeta"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/transport"
	"github.com/syncrnet/syncr/pkg/wireproto"
)

// Store is the subset of node-local state the listener needs to answer
// requests: the drop registry, plus disk access for metadata and chunks.
type Store interface {
	RegistryEntry(dropID []byte) (registry.Entry, error)
	LatestDropMetadata(dropID []byte) (*dropmeta.DropMetadata, error)
	FileMetadataByHash(dropID []byte, fileHash [32]byte) (*filemeta.FileMetadata, error)
	ChunkIndices(rootDir string, fileHash [32]byte, fm *filemeta.FileMetadata) ([]int, error)
	ReadChunk(rootDir string, fm *filemeta.FileMetadata, chunkIndex int) ([]byte, error)
	AcceptNewDropMetadata(dropID []byte, encoded []byte) error
}

// Server serves wire-protocol requests over a transport.Listener.
type Server struct {
	store  Store
	logger *log.Logger
}

// NewServer builds a listener server backed by store.
func NewServer(store Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: store, logger: logger}
}

// Serve accepts connections from l until ctx is canceled, handling each in
// its own goroutine.
func (s *Server) Serve(ctx context.Context, l transport.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn, err := l.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn transport.Conn) {
	defer conn.Close()

	var req wireproto.Request
	if err := wireproto.ReadValue(conn, &req); err != nil {
		s.logger.Printf("listener: failed to read request: %v", err)
		return
	}

	resp := s.handleRequest(req)

	if err := wireproto.WriteValue(conn, resp); err != nil {
		s.logger.Printf("listener: failed to write response: %v", err)
		return
	}
	wireproto.CloseWrite(conn)
}

func (s *Server) handleRequest(req wireproto.Request) *wireproto.Response {
	if req.ProtocolVersion != 1 {
		return wireproto.NewErrorResponse("unsupported protocol version")
	}

	switch req.Kind {
	case wireproto.KindDropMetadata:
		return s.handleDropMetadata(req)
	case wireproto.KindFileMetadata:
		return s.handleFileMetadata(req)
	case wireproto.KindChunkList:
		return s.handleChunkList(req)
	case wireproto.KindChunk:
		return s.handleChunk(req)
	case wireproto.KindNewDropMetadata:
		return s.handleNewDropMetadata(req)
	default:
		return wireproto.NewErrorResponse("unknown request kind")
	}
}

func bodyAs(body interface{}, out interface{}) bool {
	// Requests arrive already decoded into interface{} maps by the
	// canonical codec; round-trip through it to land on the concrete
	// struct type each handler expects.
	re, err := reencode(body)
	if err != nil {
		return false
	}
	if err := redecode(re, out); err != nil {
		return false
	}
	return true
}
