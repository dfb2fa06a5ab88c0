// Package wireproto implements the request/response wire protocol of §6:
// one canonical-encoded value written per direction over a TCP connection,
// then a half-close, with no length prefix — the reader decodes to EOF.
//
// The envelope shape is adapted from the teacher's wire.BaseFrame
// (pkg/wire/frame.go): a small versioned header plus a kind-specific body.
// Unlike BaseFrame, requests here are not individually signed — spec §6
// only requires drop metadata itself to carry a signature; the wire
// envelope is unsigned request/response framing around already-signed or
// already-hashed payloads.
package wireproto

import (
	"fmt"
	"io"
	"net"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

// Kind identifies which of the five listener request types a Request
// carries (§6).
type Kind uint16

const (
	KindDropMetadata    Kind = constants.RequestDropMetadata
	KindFileMetadata    Kind = constants.RequestFileMetadata
	KindChunkList       Kind = constants.RequestChunkList
	KindChunk           Kind = constants.RequestChunk
	KindNewDropMetadata Kind = constants.RequestNewDropMetadata
)

func (k Kind) String() string {
	switch k {
	case KindDropMetadata:
		return "DROP_METADATA"
	case KindFileMetadata:
		return "FILE_METADATA"
	case KindChunkList:
		return "CHUNK_LIST"
	case KindChunk:
		return "CHUNK"
	case KindNewDropMetadata:
		return "NEW_DROP_METADATA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(k))
	}
}

// Request is the envelope sent by a requester to a peer's listener.
type Request struct {
	ProtocolVersion uint16      `cbor:"protocol_version"`
	Kind            Kind        `cbor:"kind"`
	Body            interface{} `cbor:"body"`
}

// NewRequest builds a Request with the mandatory protocol_version field set.
func NewRequest(kind Kind, body interface{}) *Request {
	return &Request{ProtocolVersion: constants.ProtocolVersion, Kind: kind, Body: body}
}

// Result is the top-level outcome reported in a Response.
type Result string

const (
	ResultOK    Result = "OK"
	ResultError Result = "ERROR"
)

// Response is the envelope returned by a listener for a Request.
type Response struct {
	Result Result      `cbor:"result"`
	Body   interface{} `cbor:"body,omitempty"`
	Error  string      `cbor:"error,omitempty"`
}

// NewOKResponse wraps body in a successful Response.
func NewOKResponse(body interface{}) *Response {
	return &Response{Result: ResultOK, Body: body}
}

// NewErrorResponse builds a failed Response carrying message.
func NewErrorResponse(message string) *Response {
	return &Response{Result: ResultError, Error: message}
}

// Request bodies (§6).

// DropMetadataRequest asks for a drop's current signed metadata.
type DropMetadataRequest struct {
	DropID []byte `cbor:"drop_id"`
}

// FileMetadataRequest asks for one file's metadata within a drop version.
type FileMetadataRequest struct {
	DropID   []byte `cbor:"drop_id"`
	FileHash []byte `cbor:"file_hash"`
}

// ChunkListRequest asks which chunk indices of a file the responder has.
type ChunkListRequest struct {
	DropID   []byte `cbor:"drop_id"`
	FileHash []byte `cbor:"file_hash"`
}

// ChunkRequest asks for one chunk's raw bytes.
type ChunkRequest struct {
	DropID     []byte `cbor:"drop_id"`
	FileHash   []byte `cbor:"file_hash"`
	ChunkIndex int    `cbor:"chunk_index"`
}

// NewDropMetadataRequest announces a freshly published drop version to a
// peer, unprompted (the sender is the requester in this one case).
type NewDropMetadataRequest struct {
	DropID      []byte `cbor:"drop_id"`
	EncodedMeta []byte `cbor:"encoded_meta"`
}

// Response bodies.

// DropMetadataReply carries a drop's encoded, signed metadata.
type DropMetadataReply struct {
	EncodedMeta []byte `cbor:"encoded_meta"`
}

// FileMetadataReply carries one file's encoded metadata.
type FileMetadataReply struct {
	EncodedMeta []byte `cbor:"encoded_meta"`
}

// ChunkListReply carries the indices of chunks the responder holds.
type ChunkListReply struct {
	ChunkIndices []int `cbor:"chunk_indices"`
}

// ChunkReply carries one chunk's raw bytes.
type ChunkReply struct {
	Data []byte `cbor:"data"`
}

// WriteValue canonical-encodes v and writes it to w. It does not half-close
// w — callers on the write side of a one-shot request/response exchange
// call this once then close their write half (CloseWrite) so the peer's
// read-to-EOF completes.
func WriteValue(w io.Writer, v interface{}) error {
	data, err := binformat.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wire value: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return syncerr.NewPeerFailure("write wire value", peerAddr(w), err)
	}
	return nil
}

// ReadValue reads to EOF from r and canonical-decodes the result into v.
func ReadValue(r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return syncerr.NewPeerFailure("read wire value", peerAddr(r), err)
	}
	if err := binformat.Unmarshal(data, v); err != nil {
		return syncerr.NewPeerFailure("decode wire value", peerAddr(r), err)
	}
	return nil
}

// CloseWrite half-closes the write side of conn if it supports it.
func CloseWrite(conn net.Conn) error {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}

func peerAddr(v interface{}) string {
	if conn, ok := v.(net.Conn); ok {
		return conn.RemoteAddr().String()
	}
	return ""
}
