package listener

import (
	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/wireproto"
)

func reencode(v interface{}) ([]byte, error) {
	return binformat.Marshal(v)
}

func redecode(data []byte, out interface{}) error {
	return binformat.Unmarshal(data, out)
}

func (s *Server) handleDropMetadata(req wireproto.Request) *wireproto.Response {
	var body wireproto.DropMetadataRequest
	if !bodyAs(req.Body, &body) {
		return wireproto.NewErrorResponse("malformed DROP_METADATA request")
	}

	meta, err := s.store.LatestDropMetadata(body.DropID)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	encoded, err := meta.Encode()
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	return wireproto.NewOKResponse(wireproto.DropMetadataReply{EncodedMeta: encoded})
}

func (s *Server) handleFileMetadata(req wireproto.Request) *wireproto.Response {
	var body wireproto.FileMetadataRequest
	if !bodyAs(req.Body, &body) {
		return wireproto.NewErrorResponse("malformed FILE_METADATA request")
	}
	var hash [32]byte
	copy(hash[:], body.FileHash)

	fm, err := s.store.FileMetadataByHash(body.DropID, hash)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	encoded, err := fm.Encode()
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	return wireproto.NewOKResponse(wireproto.FileMetadataReply{EncodedMeta: encoded})
}

func (s *Server) handleChunkList(req wireproto.Request) *wireproto.Response {
	var body wireproto.ChunkListRequest
	if !bodyAs(req.Body, &body) {
		return wireproto.NewErrorResponse("malformed CHUNK_LIST request")
	}
	var hash [32]byte
	copy(hash[:], body.FileHash)

	entry, err := s.store.RegistryEntry(body.DropID)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	fm, err := s.store.FileMetadataByHash(body.DropID, hash)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	indices, err := s.store.ChunkIndices(entry.RootDir, hash, fm)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	return wireproto.NewOKResponse(wireproto.ChunkListReply{ChunkIndices: indices})
}

func (s *Server) handleChunk(req wireproto.Request) *wireproto.Response {
	var body wireproto.ChunkRequest
	if !bodyAs(req.Body, &body) {
		return wireproto.NewErrorResponse("malformed CHUNK request")
	}
	var hash [32]byte
	copy(hash[:], body.FileHash)

	entry, err := s.store.RegistryEntry(body.DropID)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	fm, err := s.store.FileMetadataByHash(body.DropID, hash)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	data, err := s.store.ReadChunk(entry.RootDir, fm, body.ChunkIndex)
	if err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	return wireproto.NewOKResponse(wireproto.ChunkReply{Data: data})
}

func (s *Server) handleNewDropMetadata(req wireproto.Request) *wireproto.Response {
	var body wireproto.NewDropMetadataRequest
	if !bodyAs(req.Body, &body) {
		return wireproto.NewErrorResponse("malformed NEW_DROP_METADATA request")
	}
	if err := s.store.AcceptNewDropMetadata(body.DropID, body.EncodedMeta); err != nil {
		return wireproto.NewErrorResponse(err.Error())
	}
	return wireproto.NewOKResponse(nil)
}
