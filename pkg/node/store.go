// Package node wires the on-disk packages (registry, dropmeta, filemeta,
// blobstore) together into the listener.Store a node's server needs to
// answer peer requests. It is the assembly point the teacher's
// cmd/beenet main() plays for the daemon as a whole, narrowed here to the
// store wiring alone (process bootstrap, CLI flags, and the frontend IPC
// surface are out of scope per §1).
package node

import (
	"github.com/syncrnet/syncr/pkg/blobstore"
	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/filemeta"
	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/listener"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

var _ listener.Store = (*Store)(nil)

// Store answers a listener's five request kinds by reading the node-local
// registry and on-disk drop/file metadata.
type Store struct {
	Registry *registry.Registry
}

// NewStore builds a Store backed by reg.
func NewStore(reg *registry.Registry) *Store {
	return &Store{Registry: reg}
}

// RegistryEntry looks up dropID's local registry entry.
func (s *Store) RegistryEntry(dropID []byte) (registry.Entry, error) {
	return s.Registry.Get(dropID)
}

// LatestDropMetadata loads the newest signed version of dropID known
// locally.
func (s *Store) LatestDropMetadata(dropID []byte) (*dropmeta.DropMetadata, error) {
	entry, err := s.Registry.Get(dropID)
	if err != nil {
		return nil, err
	}
	return dropmeta.ReadLatest(layout.DropMetaDir(entry.RootDir), dropID)
}

// FileMetadataByHash loads a tracked file's manifest by its content hash.
func (s *Store) FileMetadataByHash(dropID []byte, fileHash [32]byte) (*filemeta.FileMetadata, error) {
	entry, err := s.Registry.Get(dropID)
	if err != nil {
		return nil, err
	}
	return filemeta.ReadFile(entry.RootDir, fileHash)
}

// ChunkIndices reports which of fm's chunks are present and verified under
// rootDir.
func (s *Store) ChunkIndices(rootDir string, _ [32]byte, fm *filemeta.FileMetadata) ([]int, error) {
	present, err := fm.DownloadedChunks(rootDir)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(present))
	for idx := range present {
		indices = append(indices, idx)
	}
	return indices, nil
}

// ReadChunk returns chunkIndex's raw bytes from fm's on-disk file under
// rootDir.
func (s *Store) ReadChunk(rootDir string, fm *filemeta.FileMetadata, chunkIndex int) ([]byte, error) {
	if chunkIndex < 0 || chunkIndex >= fm.NumChunks() {
		return nil, syncerr.NewNotFound("chunk index out of range")
	}
	offset, length := fm.ChunkRange(chunkIndex)
	return blobstore.ReadChunk(layout.FilePath(rootDir, fm.RelPath), offset, length)
}

// AcceptNewDropMetadata verifies and persists an unprompted
// NEW_DROP_METADATA announcement from a peer, advancing the local LATEST
// pointer only if the announced version sorts after what is already known.
func (s *Store) AcceptNewDropMetadata(dropID []byte, encoded []byte) error {
	meta, err := dropmeta.Decode(encoded)
	if err != nil {
		return err
	}
	if err := meta.Verify(); err != nil {
		return err
	}

	entry, err := s.Registry.Get(dropID)
	if err != nil {
		return err
	}

	dropDir := layout.DropMetaDir(entry.RootDir)
	if current, currentErr := dropmeta.ReadLatest(dropDir, dropID); currentErr == nil {
		if !current.Version.Less(meta.Version) {
			return nil // already have an equal or newer version
		}
	}

	if _, err := meta.WriteFile(dropDir); err != nil {
		return err
	}
	if err := meta.WriteLatest(dropDir); err != nil {
		return err
	}
	entry.Version = meta.Version
	return s.Registry.Put(entry)
}
