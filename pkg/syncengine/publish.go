package syncengine

import (
	"crypto/rsa"
	"os"

	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

// PublishUpdate rebuilds a drop's file map from the current state of disk,
// advances its version, and signs the result, following §4.9's description
// of update publication: rebuild metadata from disk, increment version by
// one, choose a fresh nonce, preserve the other owners, sign, write the new
// version blob, and advance the LATEST pointer. signer need not be the
// primary owner: any listed owner may publish an update.
func (e *Engine) PublishUpdate(signer *rsa.PrivateKey, current *dropmeta.DropMetadata, rootDir string, ignore []string) (*dropmeta.DropMetadata, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	next := &dropmeta.DropMetadata{
		DropID:           current.DropID,
		Name:             current.Name,
		PrimaryOwner:     current.PrimaryOwner,
		SecondaryOwners:  current.SecondaryOwners,
		Version:          dropmeta.DropVersion{Version: current.Version.Version + 1, Nonce: nonce},
		PreviousVersions: append(append([]dropmeta.DropVersion{}, current.PreviousVersions...), current.Version),
	}

	if err := e.rebuildFileMap(next, rootDir, ignore); err != nil {
		return nil, err
	}
	if err := next.Sign(signer); err != nil {
		return nil, err
	}

	dropDir := layout.DropMetaDir(rootDir)
	if err := os.MkdirAll(dropDir, 0755); err != nil {
		return nil, syncerr.NewIO("create drop metadata directory", dropDir, err)
	}
	if _, err := next.WriteFile(dropDir); err != nil {
		return nil, err
	}
	if err := next.WriteLatest(dropDir); err != nil {
		return nil, err
	}

	if e.Registry != nil {
		if err := e.Registry.Put(registry.Entry{
			DropID:  next.DropID,
			RootDir: rootDir,
			IsOwner: true,
			Version: next.Version,
		}); err != nil {
			return nil, err
		}
	}
	return next, nil
}
