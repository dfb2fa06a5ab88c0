package syncengine

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"

	"github.com/syncrnet/syncr/pkg/blobstore"
	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/filemeta"
	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// hashFileChunks reads path in chunkSize-sized pieces, returning the
// per-chunk SHA-256 digests in order, the file's own content hash (the
// direct SHA-256 digest of its bytes, following original_source's
// hash_file, distinct from its chunk hashes), and its total length. The
// final chunk is unpadded, matching §3's chunk definition.
func hashFileChunks(path string, chunkSize int64) (hashes [][32]byte, fileHash [32]byte, fileLen int64, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, fileHash, 0, syncerr.NewIO("open file for hashing", path, openErr)
	}
	defer f.Close()

	info, statErr := f.Stat()
	if statErr != nil {
		return nil, fileHash, 0, syncerr.NewIO("stat file for hashing", path, statErr)
	}
	fileLen = info.Size()

	content := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			hashes = append(hashes, syncrcrypto.HashBytes(buf[:n]))
			content.Write(buf[:n])
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, fileHash, 0, syncerr.NewIO("read file for hashing", path, readErr)
		}
	}
	copy(fileHash[:], content.Sum(nil))
	return hashes, fileHash, fileLen, nil
}

// randomNonce draws a fresh 64-bit nonce for a new drop version.
func randomNonce() (uint64, error) {
	b, err := syncrcrypto.RandomBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// rebuildFileMap walks rootDir, hashes every tracked file into a chunk
// manifest, persists each manifest under the drop's file-metadata
// directory, and records the resulting file map onto meta. Used by both
// InitDrop (building the first version) and PublishUpdate (rebuilding from
// the current state of disk).
func (e *Engine) rebuildFileMap(meta *dropmeta.DropMetadata, rootDir string, ignore []string) error {
	meta.Files = make(map[string]dropmeta.FileEntry)
	chunkSize := e.Config.ChunkSize

	return blobstore.WalkWithIgnore(rootDir, ignore, func(relPath string) error {
		full := layout.FilePath(rootDir, relPath)
		hashes, fileHash, fileLen, err := hashFileChunks(full, chunkSize)
		if err != nil {
			return err
		}
		fm, err := filemeta.New(meta.DropID, relPath, chunkSize, fileLen, hashes, fileHash)
		if err != nil {
			return err
		}
		if err := fm.WriteFile(rootDir); err != nil {
			return err
		}
		meta.PutFile(relPath, fm.FileHash, fileLen)
		return nil
	})
}
