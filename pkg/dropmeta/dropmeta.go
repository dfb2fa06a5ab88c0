// Package dropmeta implements signed, versioned drop metadata as specified
// in §4.5: the drop's identity, its owner set, its ordered version, and the
// per-file hash map, all covered by a signature from the current owner.
//
// The signing shape mirrors the teacher's wire.BaseFrame.Sign/Verify
// (pkg/wire/frame.go): encode the structure with the signature field
// excluded, sign or verify those canonical bytes. Because spec §4.1
// mandates RSA-4096/SHA-256 rather than the teacher's Ed25519, signing goes
// through pkg/syncrcrypto instead of crypto/ed25519.
package dropmeta

import (
	"crypto"
	"crypto/rsa"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// NormalizeName applies NFC normalization to a drop name, following the
// teacher's honeytag resolver's normalize-before-hash pattern
// (pkg/honeytag/resolver.go), so that visually identical names entered
// through different input methods compare and hash equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// DropVersion is a total-ordered (version, nonce) pair: a drop's history is
// ordered first by version, ties broken by nonce.
type DropVersion struct {
	Version uint64 `cbor:"version"`
	Nonce   uint64 `cbor:"nonce"`
}

// Less reports whether v sorts before other.
func (v DropVersion) Less(other DropVersion) bool {
	if v.Version != other.Version {
		return v.Version < other.Version
	}
	return v.Nonce < other.Nonce
}

func (v DropVersion) String() string {
	return fmt.Sprintf("%d_%d", v.Version, v.Nonce)
}

// FileEntry is one file's record within a drop's files map: its overall
// content hash and length, keyed by relative path in DropMetadata.Files.
// RelPath duplicates the map key so a flattened []FileEntry (as built by
// pkg/syncengine) still carries the path alongside the hash.
type FileEntry struct {
	RelPath  string   `cbor:"rel_path"`
	FileHash [32]byte `cbor:"file_hash"`
	FileLen  int64    `cbor:"file_length"`
}

// DropMetadata is the signed, versioned description of a drop: its
// identity, name, owners, current version, and file map.
type DropMetadata struct {
	DropID           []byte               `cbor:"drop_id"` // primary owner node ID || random bytes
	Name             string               `cbor:"name"`    // NFC-normalized
	PrimaryOwner     []byte               `cbor:"primary_owner"`    // DER-encoded RSA public key
	SecondaryOwners  [][]byte             `cbor:"secondary_owners"` // DER-encoded RSA public keys
	SignedBy         []byte               `cbor:"signed_by"`        // DER-encoded RSA public key of the signer
	Version          DropVersion          `cbor:"drop_version"`
	PreviousVersions []DropVersion        `cbor:"previous_versions"`
	Files            map[string]FileEntry `cbor:"files"` // keyed by relative path
	FilesHash        [32]byte             `cbor:"files_hash"`
	HeaderSignature  []byte               `cbor:"header_signature"`
}

// NewDropID builds a drop ID: the primary owner's 32-byte node ID followed
// by 32 random bytes.
func NewDropID(primaryOwner syncrcrypto.NodeID) ([]byte, error) {
	suffix, err := syncrcrypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	id := make([]byte, 0, constants.DropIDSize)
	id = append(id, primaryOwner[:]...)
	id = append(id, suffix...)
	return id, nil
}

// genFilesHash recomputes FilesHash from the current Files map, following
// the canonical-dictionary hashing rule of §4.1.
func (m *DropMetadata) genFilesHash() error {
	flat := make(map[string][]byte, len(m.Files))
	for k, v := range m.Files {
		encoded, err := binformat.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode file entry %s: %w", k, err)
		}
		flat[k] = encoded
	}
	h, err := syncrcrypto.HashDict(flat)
	if err != nil {
		return err
	}
	m.FilesHash = h
	return nil
}

// VerifyFilesHash reports whether FilesHash matches a fresh recomputation
// from Files.
func (m *DropMetadata) VerifyFilesHash() (bool, error) {
	want := m.FilesHash
	if err := m.genFilesHash(); err != nil {
		return false, err
	}
	got := m.FilesHash
	m.FilesHash = want
	return got == want, nil
}

// headerForSigning excludes files and header_signature, matching §4.5's
// description of the signed header (computed with header_signature and
// files both absent). Deleting the fields rather than zeroing them is
// functionally equivalent here: both Sign and Verify apply the identical
// exclusion, so the byte string each produces for a given header is the
// same either way.
func (m *DropMetadata) headerForSigning() ([]byte, error) {
	return binformat.EncodeForSigning(m, "files", "header_signature")
}

// Sign recomputes FilesHash and signs the header with priv, setting
// SignedBy to the corresponding public key. The signer need not be the
// primary owner: secondary owners may also publish updates (§4.9).
func (m *DropMetadata) Sign(priv *rsa.PrivateKey) error {
	if err := m.genFilesHash(); err != nil {
		return err
	}
	m.SignedBy = syncrcrypto.EncodePublicKey(&priv.PublicKey)

	data, err := m.headerForSigning()
	if err != nil {
		return fmt.Errorf("encode header for signing: %w", err)
	}
	digest := syncrcrypto.HashBytes(data)
	sig, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("sign header: %w", err)
	}
	m.HeaderSignature = sig
	return nil
}

// Verify checks that header_signature was produced by the owner named in
// signed_by over the current header, and that signed_by is either the
// primary owner or a listed secondary owner, and that files_hash matches
// the files map.
func (m *DropMetadata) Verify() error {
	if len(m.HeaderSignature) == 0 {
		return syncerr.NewVerification("drop metadata has no header signature", nil)
	}
	if !m.isKnownOwner(m.SignedBy) {
		return syncerr.NewPermission("drop metadata signed by a non-owner key")
	}

	pub, err := syncrcrypto.DecodePublicKey(m.SignedBy)
	if err != nil {
		return syncerr.NewVerification("decode signer public key", err)
	}

	data, err := m.headerForSigning()
	if err != nil {
		return syncerr.NewVerification("encode header for verification", err)
	}
	digest := syncrcrypto.HashBytes(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], m.HeaderSignature); err != nil {
		return syncerr.NewVerification("header signature does not verify", err)
	}

	ok, err := m.VerifyFilesHash()
	if err != nil {
		return syncerr.NewVerification("recompute files_hash", err)
	}
	if !ok {
		return syncerr.NewVerification("files_hash does not match files map", nil)
	}
	return nil
}

func (m *DropMetadata) isKnownOwner(key []byte) bool {
	if bytesEqual(key, m.PrimaryOwner) {
		return true
	}
	for _, owner := range m.SecondaryOwners {
		if bytesEqual(key, owner) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsPrimaryOwner reports whether key is the drop's primary owner.
func (m *DropMetadata) IsPrimaryOwner(key []byte) bool {
	return bytesEqual(key, m.PrimaryOwner)
}

// Encode serializes the metadata with the canonical binary codec.
func (m *DropMetadata) Encode() ([]byte, error) {
	return binformat.Marshal(m)
}

// Decode parses metadata previously produced by Encode.
func Decode(data []byte) (*DropMetadata, error) {
	var m DropMetadata
	if err := binformat.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode drop metadata: %w", err)
	}
	return &m, nil
}

// MakeFilename returns the on-disk name for a specific signed version of
// dropID, following the original implementation's
// "<base64(drop_id)>_<version>_<nonce>" convention.
func MakeFilename(dropID []byte, version DropVersion) string {
	return fmt.Sprintf("%s_%s", syncrcrypto.B64Encode(dropID), version.String())
}

// LatestFilename returns the on-disk name of the pointer file that always
// names the newest known version of dropID.
func LatestFilename(dropID []byte) string {
	return fmt.Sprintf("%s_%s", syncrcrypto.B64Encode(dropID), constants.LatestSuffix)
}

// GetFileNameFromHash looks up the relative path recorded for a given file
// hash, the reverse lookup original_source calls get_file_name_from_id.
// Files is keyed by relative path, not by hash, so this scans the map's
// values rather than indexing it directly.
func (m *DropMetadata) GetFileNameFromHash(hash [32]byte) (string, error) {
	for relPath, entry := range m.Files {
		if entry.FileHash == hash {
			return relPath, nil
		}
	}
	return "", syncerr.NewNotFound(fmt.Sprintf("no file entry for hash %s", syncrcrypto.B64Encode(hash[:])))
}

// PutFile records or replaces a file entry keyed by its relative path, per
// §3's files mapping (relative path -> file-content hash).
func (m *DropMetadata) PutFile(relPath string, fileHash [32]byte, fileLen int64) {
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	m.Files[relPath] = FileEntry{
		RelPath:  relPath,
		FileHash: fileHash,
		FileLen:  fileLen,
	}
}
