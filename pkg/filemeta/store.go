package filemeta

import (
	"os"
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

// WriteFile persists fm under root's file-metadata directory, named by its
// content hash, following §3's "D/.5yncr/files/<base64(file_hash)>" layout.
func (fm *FileMetadata) WriteFile(root string) error {
	data, err := fm.Encode()
	if err != nil {
		return err
	}
	path := layout.FileMetaPath(root, fm.FileHash)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return syncerr.NewIO("create file metadata directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return syncerr.NewIO("write file metadata", path, err)
	}
	return nil
}

// ReadFile loads the manifest for fileHash previously written under root.
func ReadFile(root string, fileHash [32]byte) (*FileMetadata, error) {
	path := layout.FileMetaPath(root, fileHash)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.NewNotFound("no file metadata at " + path)
		}
		return nil, syncerr.NewIO("read file metadata", path, err)
	}
	return Decode(data)
}
