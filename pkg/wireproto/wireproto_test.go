package wireproto

import (
	"bytes"
	"testing"
)

func TestRequestResponseRoundTrip(t *testing.T) {
	req := NewRequest(KindChunk, ChunkRequest{
		DropID:     []byte("drop-id"),
		FileHash:   []byte("file-hash"),
		ChunkIndex: 3,
	})

	var buf bytes.Buffer
	if err := WriteValue(&buf, req); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	var got Request
	if err := ReadValue(&buf, &got); err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if got.ProtocolVersion != 1 {
		t.Fatalf("expected protocol_version 1, got %d", got.ProtocolVersion)
	}
	if got.Kind != KindChunk {
		t.Fatalf("expected KindChunk, got %v", got.Kind)
	}
}

func TestOKAndErrorResponses(t *testing.T) {
	ok := NewOKResponse(ChunkReply{Data: []byte("payload")})
	if ok.Result != ResultOK {
		t.Fatalf("expected ResultOK, got %v", ok.Result)
	}

	failed := NewErrorResponse("boom")
	if failed.Result != ResultError {
		t.Fatalf("expected ResultError, got %v", failed.Result)
	}
	if failed.Error != "boom" {
		t.Fatalf("expected error message preserved, got %q", failed.Error)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindDropMetadata:    "DROP_METADATA",
		KindFileMetadata:    "FILE_METADATA",
		KindChunkList:       "CHUNK_LIST",
		KindChunk:           "CHUNK",
		KindNewDropMetadata: "NEW_DROP_METADATA",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestEncodeDecodeResponseWithBody(t *testing.T) {
	resp := NewOKResponse(ChunkListReply{ChunkIndices: []int{0, 2, 4}})

	var buf bytes.Buffer
	if err := WriteValue(&buf, resp); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	var got Response
	if err := ReadValue(&buf, &got); err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if got.Result != ResultOK {
		t.Fatalf("expected ResultOK, got %v", got.Result)
	}
}
