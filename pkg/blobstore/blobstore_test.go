package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

func TestCreateWriteCompleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.bin")

	chunk0 := []byte("first chunk of data")
	chunk1 := []byte("second chunk, shorter")
	total := int64(len(chunk0) + len(chunk1))

	if err := CreateFile(path, total); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if complete, err := IsComplete(path); err != nil {
		t.Fatalf("IsComplete: %v", err)
	} else if complete {
		t.Fatalf("freshly created file should be incomplete")
	}

	if err := WriteChunk(path, 0, chunk0, syncrcrypto.HashBytes(chunk0)); err != nil {
		t.Fatalf("WriteChunk 0: %v", err)
	}
	if err := WriteChunk(path, int64(len(chunk0)), chunk1, syncrcrypto.HashBytes(chunk1)); err != nil {
		t.Fatalf("WriteChunk 1: %v", err)
	}

	ok, err := VerifyChunk(path, 0, int64(len(chunk0)), syncrcrypto.HashBytes(chunk0))
	if err != nil {
		t.Fatalf("VerifyChunk: %v", err)
	}
	if !ok {
		t.Fatalf("chunk 0 should verify before completion")
	}

	if err := MarkFileComplete(path); err != nil {
		t.Fatalf("MarkFileComplete: %v", err)
	}

	complete, err := IsComplete(path)
	if err != nil {
		t.Fatalf("IsComplete after completion: %v", err)
	}
	if !complete {
		t.Fatalf("file should be complete after MarkFileComplete")
	}

	// Idempotent.
	if err := MarkFileComplete(path); err != nil {
		t.Fatalf("MarkFileComplete should be idempotent: %v", err)
	}

	got, err := ReadChunk(path, 0, int64(len(chunk0)))
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if string(got) != string(chunk0) {
		t.Fatalf("read chunk mismatch: got %q want %q", got, chunk0)
	}
}

func TestWriteChunkRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	if err := CreateFile(path, 4); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	wrongHash := syncrcrypto.HashBytes([]byte("not the data"))
	err := WriteChunk(path, 0, []byte("data"), wrongHash)
	if err == nil {
		t.Fatalf("expected hash mismatch error")
	}
	se, ok := err.(*syncerr.SyncError)
	if !ok || se.Code != syncerr.CodeVerification {
		t.Fatalf("expected CodeVerification, got %v", err)
	}
}

func TestIsCompleteNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := IsComplete(filepath.Join(dir, "missing.bin"))
	se, ok := err.(*syncerr.SyncError)
	if !ok || se.Code != syncerr.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestWalkWithIgnoreSkipsMetadataDir(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "a")
	mustWrite(t, filepath.Join(dir, "b.log"), "b")
	mustWrite(t, filepath.Join(dir, ".5yncr", "state.db"), "state")

	var seen []string
	err := WalkWithIgnore(dir, []string{"*.log"}, func(rel string) error {
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkWithIgnore: %v", err)
	}
	if len(seen) != 1 || seen[0] != "a.txt" {
		t.Fatalf("expected only a.txt, got %v", seen)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
