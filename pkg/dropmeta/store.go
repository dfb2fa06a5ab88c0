package dropmeta

import (
	"os"
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/syncerr"
)

// WriteFile persists m under dir using its version-qualified filename, and
// returns that filename.
func (m *DropMetadata) WriteFile(dir string) (string, error) {
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	name := MakeFilename(m.DropID, m.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", syncerr.NewIO("create metadata directory", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", syncerr.NewIO("write drop metadata", path, err)
	}
	return name, nil
}

// WriteLatest overwrites dropID's LATEST pointer with the plain-text
// filename of m's version blob (written separately via WriteFile). Per §3
// / §6, LATEST is a text pointer to a filename, not the metadata itself:
// a reader opening LATEST followed by the named file may observe an older
// version but never a torn one, since the pointer only ever names a
// version blob that was fully written beforehand.
func (m *DropMetadata) WriteLatest(dir string) error {
	path := filepath.Join(dir, LatestFilename(m.DropID))
	name := MakeFilename(m.DropID, m.Version)
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		return syncerr.NewIO("write latest drop metadata pointer", path, err)
	}
	return nil
}

// ReadLatest reads dropID's LATEST pointer to find the filename of the
// newest persisted version, then loads that version from dir.
func ReadLatest(dir string, dropID []byte) (*DropMetadata, error) {
	path := filepath.Join(dir, LatestFilename(dropID))
	name, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.NewNotFound("no latest pointer at " + path)
		}
		return nil, syncerr.NewIO("read latest drop metadata pointer", path, err)
	}
	return readFile(filepath.Join(dir, string(name)))
}

// ReadVersion loads a specific signed version of dropID from dir.
func ReadVersion(dir string, dropID []byte, version DropVersion) (*DropMetadata, error) {
	path := filepath.Join(dir, MakeFilename(dropID, version))
	return readFile(path)
}

func readFile(path string) (*DropMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.NewNotFound("no drop metadata at " + path)
		}
		return nil, syncerr.NewIO("read drop metadata", path, err)
	}
	return Decode(data)
}
