// Package syncrcrypto implements the crypto primitives of spec §4.1: 4096-bit
// key generation, canonical public-key encoding, 32-byte node-ID derivation,
// SHA-256 chunk hashing, deterministic dictionary hashing, base64 for IDs
// appearing in filenames and wire strings, and a cryptographically strong
// random-bytes source. It has no signing or verification helpers: callers
// (pkg/dropmeta) sign and verify with crypto/rsa directly.
package syncrcrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syncrnet/syncr/pkg/binformat"
	"github.com/syncrnet/syncr/pkg/constants"
	"github.com/syncrnet/syncr/pkg/syncerr"
)

// NodeID is the 32-byte digest of a node's public signing key.
type NodeID [constants.NodeIDSize]byte

// String returns the base64 (filename/wire-safe) encoding of the node ID.
func (n NodeID) String() string { return B64Encode(n[:]) }

// Identity holds a node's RSA-4096 signing key pair and its derived node ID.
type Identity struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	id         NodeID
}

// GenerateIdentity creates a fresh 4096-bit RSA identity.
func GenerateIdentity() (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, constants.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	id := &Identity{PrivateKey: priv, PublicKey: &priv.PublicKey}
	id.id = nodeIDFromPublicKey(id.PublicKey)
	return id, nil
}

// NewIdentityFromKey wraps an already-generated private key (e.g. loaded
// from disk by the node bootstrap ceremony, which is out of scope here).
func NewIdentityFromKey(priv *rsa.PrivateKey) *Identity {
	id := &Identity{PrivateKey: priv, PublicKey: &priv.PublicKey}
	id.id = nodeIDFromPublicKey(id.PublicKey)
	return id
}

// ID returns the node ID derived from the identity's public key.
func (id *Identity) ID() NodeID { return id.id }

// EncodePublicKey returns the canonical DER encoding of a public key, used
// both for node-ID derivation and for wire transmission.
func EncodePublicKey(pub *rsa.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// rsa.PublicKey always marshals; a failure here indicates a
		// malformed key the caller should never have constructed.
		panic(fmt.Sprintf("syncrcrypto: marshal public key: %v", err))
	}
	return der
}

// DecodePublicKey parses the canonical DER encoding of a public key.
func DecodePublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// NodeIDFromPublicKey derives a NodeID from a public key without requiring
// a full Identity (used by key-store lookups resolving a peer's public key
// back to a node ID for comparison).
func NodeIDFromPublicKey(pub *rsa.PublicKey) NodeID { return nodeIDFromPublicKey(pub) }

func nodeIDFromPublicKey(pub *rsa.PublicKey) NodeID {
	return NodeID(sha256.Sum256(EncodePublicKey(pub)))
}

// RandomBytes returns n cryptographically strong random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// B64Encode encodes bytes for use in filenames and wire strings.
func B64Encode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// B64Decode decodes a B64Encode string.
func B64Decode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// diskIdentity is the on-disk JSON representation of an Identity, mirroring
// the teacher's Identity.SaveToFile/LoadFromFile shape.
type diskIdentity struct {
	PrivateKeyDER []byte `json:"private_key_der"`
}

// SaveToFile persists the identity's private key to filename with 0600
// permissions, creating parent directories with 0700.
func (id *Identity) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return syncerr.NewIO("create identity directory", dir, err)
	}
	der := x509.MarshalPKCS1PrivateKey(id.PrivateKey)
	data, err := json.MarshalIndent(diskIdentity{PrivateKeyDER: der}, "", "  ")
	if err != nil {
		return syncerr.NewIO("marshal identity", filename, err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return syncerr.NewIO("write identity", filename, err)
	}
	return nil
}

// LoadIdentityFromFile loads a private key previously written by SaveToFile.
func LoadIdentityFromFile(filename string) (*Identity, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, syncerr.NewIO("read identity", filename, err)
	}
	var di diskIdentity
	if err := json.Unmarshal(data, &di); err != nil {
		return nil, syncerr.NewIO("unmarshal identity", filename, err)
	}
	priv, err := x509.ParsePKCS1PrivateKey(di.PrivateKeyDER)
	if err != nil {
		return nil, syncerr.NewIO("parse identity key", filename, err)
	}
	return NewIdentityFromKey(priv), nil
}

// HashDict computes the deterministic digest of a mapping, as required for
// files_hash (§4.1): encode with the canonical codec (sorted keys) and hash
// the result. Used both for the files map and for any other keyed
// structure requiring a content digest.
func HashDict(m map[string][]byte) ([32]byte, error) {
	// Convert to a generic map so binformat's canonical sort applies.
	generic := make(map[string]interface{}, len(m))
	for k, v := range m {
		generic[k] = v
	}
	encoded, err := binformat.Marshal(generic)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode dict for hashing: %w", err)
	}
	return sha256.Sum256(encoded), nil
}

// HashBytes computes the SHA-256 digest of data (used for chunk hashing).
func HashBytes(data []byte) [32]byte { return sha256.Sum256(data) }
