// Package layout names the on-disk paths under a drop root, as fixed by
// spec §3: a drop metadata directory, a file metadata directory, and the
// synced files themselves directly under the root.
package layout

import (
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// MetadataDir returns D/.5yncr for drop root D.
func MetadataDir(root string) string {
	return filepath.Join(root, constants.MetadataDirName)
}

// DropMetaDir returns D/.5yncr/drop, where every signed drop-metadata
// version and the LATEST pointer live.
func DropMetaDir(root string) string {
	return filepath.Join(MetadataDir(root), constants.DropSubdir)
}

// FileMetaDir returns D/.5yncr/files, where one manifest blob lives per
// tracked file, named by its content hash.
func FileMetaDir(root string) string {
	return filepath.Join(MetadataDir(root), constants.FilesSubdir)
}

// FileMetaPath returns the path of the manifest blob for fileHash.
func FileMetaPath(root string, fileHash [32]byte) string {
	return filepath.Join(FileMetaDir(root), syncrcrypto.B64Encode(fileHash[:]))
}

// FilePath returns D/<relPath>, the synced file's final location.
func FilePath(root, relPath string) string {
	return filepath.Join(root, relPath)
}
