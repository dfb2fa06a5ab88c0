package syncrcrypto

import (
	"crypto"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateIdentityNodeID(t *testing.T) {
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if id.PrivateKey.N.BitLen() < 4090 {
		t.Fatalf("expected ~4096-bit key, got %d bits", id.PrivateKey.N.BitLen())
	}
	nodeID := id.ID()
	again := NodeIDFromPublicKey(id.PublicKey)
	if nodeID != again {
		t.Fatalf("node ID derivation is not stable across calls")
	}
}

func TestEncodeDecodePublicKeyRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	der := EncodePublicKey(id.PublicKey)
	got, err := DecodePublicKey(der)
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if got.N.Cmp(id.PublicKey.N) != 0 || got.E != id.PublicKey.E {
		t.Fatalf("decoded public key does not match original")
	}
}

func TestSaveLoadIdentityRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "private_key.json")
	if err := id.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved identity: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("expected 0600 permissions, got %v", perm)
	}

	loaded, err := LoadIdentityFromFile(path)
	if err != nil {
		t.Fatalf("LoadIdentityFromFile: %v", err)
	}
	if loaded.ID() != id.ID() {
		t.Fatalf("loaded identity has a different node ID")
	}
}

func TestSignVerifyWithPKCS1v15(t *testing.T) {
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	digest := HashBytes([]byte("hello drop"))
	sig, err := rsa.SignPKCS1v15(nil, id.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(id.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("VerifyPKCS1v15: %v", err)
	}
}

func TestHashDictIsOrderIndependent(t *testing.T) {
	a := map[string][]byte{"b": []byte("2"), "a": []byte("1")}
	b := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	ha, err := HashDict(a)
	if err != nil {
		t.Fatalf("HashDict a: %v", err)
	}
	hb, err := HashDict(b)
	if err != nil {
		t.Fatalf("HashDict b: %v", err)
	}
	if ha != hb {
		t.Fatalf("HashDict should be independent of Go map iteration / literal order")
	}
}

func TestB64RoundTrip(t *testing.T) {
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	encoded := B64Encode(b)
	decoded, err := B64Decode(encoded)
	if err != nil {
		t.Fatalf("B64Decode: %v", err)
	}
	if string(decoded) != string(b) {
		t.Fatalf("base64 round trip mismatch")
	}
}
