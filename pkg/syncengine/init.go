package syncengine

import (
	"os"

	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/layout"
	"github.com/syncrnet/syncr/pkg/registry"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// InitDrop creates and signs the first version of a new drop from the files
// currently on disk under rootDir, following original_source's
// make_drop_metadata (init/drop_init.py): a fresh drop ID derived from the
// owner's node ID, version 1 with a random nonce (§8 scenario (a)), a files
// map built by hashing every tracked file, and a signature from the
// owner's key.
func (e *Engine) InitDrop(identity *syncrcrypto.Identity, name, rootDir string, ignore []string) (*dropmeta.DropMetadata, error) {
	dropID, err := dropmeta.NewDropID(identity.ID())
	if err != nil {
		return nil, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	meta := &dropmeta.DropMetadata{
		DropID:       dropID,
		Name:         dropmeta.NormalizeName(name),
		PrimaryOwner: syncrcrypto.EncodePublicKey(identity.PublicKey),
		Version:      dropmeta.DropVersion{Version: 1, Nonce: nonce},
	}

	if err := e.rebuildFileMap(meta, rootDir, ignore); err != nil {
		return nil, err
	}
	if err := meta.Sign(identity.PrivateKey); err != nil {
		return nil, err
	}

	dropDir := layout.DropMetaDir(rootDir)
	if err := os.MkdirAll(dropDir, 0755); err != nil {
		return nil, syncerr.NewIO("create drop metadata directory", dropDir, err)
	}
	if _, err := meta.WriteFile(dropDir); err != nil {
		return nil, err
	}
	if err := meta.WriteLatest(dropDir); err != nil {
		return nil, err
	}

	if e.Registry != nil {
		if err := e.Registry.Put(registry.Entry{
			DropID:  dropID,
			RootDir: rootDir,
			IsOwner: true,
			Version: meta.Version,
		}); err != nil {
			return nil, err
		}
	}
	return meta, nil
}
