// Package filemeta implements per-file metadata as specified in §4.4: the
// chunk-hash manifest for a single tracked file, the lazily-computed set of
// chunks already present on disk, and the on-disk encode/decode pair for
// that manifest.
//
// The manifest shape follows the teacher's content.Manifest
// (pkg/content/types.go), narrowed to the fields this spec actually needs:
// a chunk size, a per-chunk hash list, and the total file length.
package filemeta

import (
	"fmt"
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/blobstore"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

// FileMetadata describes one file tracked by a drop: its content hashes,
// chunked layout, and (lazily) which chunks are already on disk.
type FileMetadata struct {
	DropID    []byte     `cbor:"drop_id"`
	Hashes    [][32]byte `cbor:"hashes"`      // per-chunk SHA-256, in order
	FileHash  [32]byte   `cbor:"file_hash"`   // SHA-256 of the file's raw content
	FileLen   int64      `cbor:"file_length"`
	ChunkSize int64      `cbor:"chunk_size"`
	RelPath   string     `cbor:"rel_path"` // path relative to the drop root

	// downloaded is the memoized set of chunk indices verified present on
	// disk. nil means "not yet scanned". finish_chunk updates it directly
	// so a repeat scan never has to touch disk again.
	downloaded map[int]bool
}

// NumChunks returns ceil(FileLen / ChunkSize), matching the original's
// num_chunks computation.
func (fm *FileMetadata) NumChunks() int {
	if fm.FileLen == 0 {
		return 0
	}
	return int((fm.FileLen + fm.ChunkSize - 1) / fm.ChunkSize)
}

// ChunkRange returns the byte offset and length of chunk index i. The last
// chunk is unpadded: its length is FileLen - i*ChunkSize.
func (fm *FileMetadata) ChunkRange(i int) (offset, length int64) {
	offset = int64(i) * fm.ChunkSize
	length = fm.ChunkSize
	if remaining := fm.FileLen - offset; remaining < length {
		length = remaining
	}
	return offset, length
}

// New builds file metadata for a file from its chunk hashes in order and
// its content hash (both produced by hashing the
// source file during InitDrop or PublishUpdate). fileHash is the direct
// SHA-256 digest of the file's bytes, not a hash of the chunk hashes,
// matching the original implementation's hash_file, which is distinct
// from its chunk-hash-producing file_hashes.
func New(dropID []byte, relPath string, chunkSize int64, fileLen int64, hashes [][32]byte, fileHash [32]byte) (*FileMetadata, error) {
	if chunkSize <= 0 {
		chunkSize = constants.DefaultChunkSize
	}
	return &FileMetadata{
		DropID:    dropID,
		Hashes:    hashes,
		FileHash:  fileHash,
		FileLen:   fileLen,
		ChunkSize: chunkSize,
		RelPath:   relPath,
	}, nil
}

// Encode serializes the metadata with the canonical binary codec.
func (fm *FileMetadata) Encode() ([]byte, error) {
	return binformat.Marshal(fm)
}

// Decode parses metadata previously produced by Encode.
func Decode(data []byte) (*FileMetadata, error) {
	var fm FileMetadata
	if err := binformat.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("decode file metadata: %w", err)
	}
	return &fm, nil
}

// downloadedChunks scans disk, on first call only, to determine which
// chunk indices are already present and correctly hashed, then caches the
// result. rootDir is the drop's local root directory; RelPath is joined
// against it to find the on-disk file.
func (fm *FileMetadata) downloadedChunks(rootDir string) (map[int]bool, error) {
	if fm.downloaded != nil {
		return fm.downloaded, nil
	}
	fullPath := filepath.Join(rootDir, fm.RelPath)
	present := make(map[int]bool, fm.NumChunks())

	complete, err := blobstore.IsComplete(fullPath)
	if err != nil {
		if se, ok := err.(*syncerr.SyncError); ok && se.Code == syncerr.CodeNotFound {
			fm.downloaded = present
			return present, nil
		}
		return nil, err
	}
	if complete {
		for i := range fm.Hashes {
			present[i] = true
		}
		fm.downloaded = present
		return present, nil
	}

	for i, want := range fm.Hashes {
		offset, length := fm.ChunkRange(i)
		ok, err := blobstore.VerifyChunk(fullPath, offset, length, want)
		if err != nil {
			return nil, err
		}
		if ok {
			present[i] = true
		}
	}
	fm.downloaded = present
	return present, nil
}

// DownloadedChunks returns the set of chunk indices already present and
// verified on disk.
func (fm *FileMetadata) DownloadedChunks(rootDir string) (map[int]bool, error) {
	m, err := fm.downloadedChunks(rootDir)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// NeededChunks returns the complement of DownloadedChunks over [0, NumChunks).
func (fm *FileMetadata) NeededChunks(rootDir string) ([]int, error) {
	present, err := fm.downloadedChunks(rootDir)
	if err != nil {
		return nil, err
	}
	var needed []int
	for i := 0; i < fm.NumChunks(); i++ {
		if !present[i] {
			needed = append(needed, i)
		}
	}
	return needed, nil
}

// FinishChunk records that chunk index i has just been written and
// verified, amending the memoized downloaded set without rescanning disk.
// Callers must have already written and verified the chunk via blobstore
// before calling this.
func (fm *FileMetadata) FinishChunk(rootDir string, i int) error {
	if fm.downloaded == nil {
		if _, err := fm.downloadedChunks(rootDir); err != nil {
			return err
		}
	}
	fm.downloaded[i] = true
	return nil
}

// IsFileComplete reports whether every chunk has been downloaded.
func (fm *FileMetadata) IsFileComplete(rootDir string) (bool, error) {
	present, err := fm.downloadedChunks(rootDir)
	if err != nil {
		return false, err
	}
	return len(present) == fm.NumChunks(), nil
}
