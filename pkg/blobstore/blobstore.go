// Package blobstore implements the file I/O layer of spec §4.3: chunk-level
// reads and writes against an in-progress (".part") file, atomic completion
// by rename, and an ignore-aware directory walk.
//
// Unlike the teacher's in-memory Chunk/CID model (pkg/content/chunker.go),
// files here are addressed by path and offset rather than held fully in
// memory, since a drop's files are synced incrementally, one chunk at a
// time, from whichever peer currently has it.
package blobstore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// partSuffix marks a file as still being assembled.
const partSuffix = constants.IncompleteSuffix

// CreateFile prepares path for chunked writes: if neither the final file
// nor its .part sibling exists, a .part file is created and preallocated to
// length. If the final file already exists it is renamed to .part first, so
// that chunk verification always targets the incomplete sibling (mirrors
// the original's create_file rename-if-exists behavior for re-sync).
func CreateFile(path string, length int64) error {
	partPath := path + partSuffix

	if _, err := os.Stat(partPath); err == nil {
		return truncateTo(partPath, length)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, partPath); err != nil {
			return syncerr.NewIO("rename existing file to incomplete", path, err)
		}
		return truncateTo(partPath, length)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return syncerr.NewIO("create parent directory", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return syncerr.NewIO("create incomplete file", partPath, err)
	}
	defer f.Close()
	return truncateTo(partPath, length)
}

func truncateTo(path string, length int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return syncerr.NewIO("open for truncate", path, err)
	}
	defer f.Close()
	if err := f.Truncate(length); err != nil {
		return syncerr.NewIO("truncate", path, err)
	}
	return nil
}

// WriteChunk writes data at offset into path's .part file, verifying it
// against expectedHash first. If path is already complete (its final file
// exists and no .part sibling remains), WriteChunk is a no-op and returns
// nil without checking data.
func WriteChunk(path string, offset int64, data []byte, expectedHash [32]byte) error {
	partPath := path + partSuffix
	if _, err := os.Stat(partPath); os.IsNotExist(err) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	got := syncrcrypto.HashBytes(data)
	if got != expectedHash {
		return syncerr.NewVerification(
			fmt.Sprintf("chunk hash mismatch at offset %d", offset), nil)
	}

	f, err := os.OpenFile(partPath, os.O_WRONLY, 0644)
	if err != nil {
		return syncerr.NewIO("open incomplete file for write", partPath, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return syncerr.NewIO("write chunk", partPath, err)
	}
	return nil
}

// ReadChunk reads length bytes at offset from path, whichever of the final
// or .part form currently exists.
func ReadChunk(path string, offset int64, length int64) ([]byte, error) {
	actual, err := resolveExisting(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(actual)
	if err != nil {
		return nil, syncerr.NewIO("open for read", actual, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, syncerr.NewIO("read chunk", actual, err)
	}
	return buf[:n], nil
}

// MarkFileComplete renames path's .part sibling to its final name. It is
// idempotent: if the final file already exists and no .part remains, it
// returns nil.
func MarkFileComplete(path string) error {
	complete, err := IsComplete(path)
	if err != nil {
		return err
	}
	if complete {
		return nil
	}
	if err := os.Rename(path+partSuffix, path); err != nil {
		return syncerr.NewIO("mark file complete", path, err)
	}
	return nil
}

// IsComplete reports whether path's final file exists (true) or only its
// .part sibling does (false). It returns a CodeNotFound error if neither
// exists.
func IsComplete(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	}
	if _, err := os.Stat(path + partSuffix); err == nil {
		return false, nil
	}
	return false, syncerr.NewNotFound(fmt.Sprintf("no file or incomplete file at %s", path))
}

func resolveExisting(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if _, err := os.Stat(path + partSuffix); err == nil {
		return path + partSuffix, nil
	}
	return "", syncerr.NewNotFound(fmt.Sprintf("no file or incomplete file at %s", path))
}

// VerifyChunk reports whether the bytes at offset/length in path match
// expectedHash, without raising on mismatch (used by the file metadata
// layer's downloaded_chunks scan, which treats a mismatch as "not yet
// downloaded" rather than an error).
func VerifyChunk(path string, offset, length int64, expectedHash [32]byte) (bool, error) {
	data, err := ReadChunk(path, offset, length)
	if err != nil {
		return false, err
	}
	if int64(len(data)) != length {
		return false, nil
	}
	return syncrcrypto.HashBytes(data) == expectedHash, nil
}

// WalkWithIgnore walks root, calling fn for every regular file whose
// relative path does not match any of ignore (fnmatch-style globs) or
// constants.DefaultIgnore.
func WalkWithIgnore(root string, ignore []string, fn func(relPath string) error) error {
	patterns := append(append([]string{}, constants.DefaultIgnore...), ignore...)

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		for _, pat := range patterns {
			if matched, _ := filepath.Match(pat, rel); matched {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if matched, _ := filepath.Match(pat, d.Name()); matched {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		return fn(rel)
	})
}
