// Package binformat implements the canonical binary dictionary codec of
// spec §4.2: string keys, integers, byte-strings, ordered lists, and
// nested mappings, with keys sorted lexicographically and a bijective
// encode/decode pair so that re-encoding a decoded header reproduces the
// signed bytes exactly.
//
// Canonical CBOR (RFC 8949 §4.2.1, sorted-map-keys variant) already gives
// this guarantee, so it is used as the concrete wire format rather than a
// hand-rolled one. Map keys and struct field names are encoded as CBOR text
// strings, not byte strings.
package binformat

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Mode is the canonical encoding mode: deterministic key order, definite
// lengths, no duplicate map keys.
var Mode cbor.EncMode

func init() {
	var err error
	Mode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("binformat: failed to build canonical mode: %v", err))
	}
}

// Marshal encodes v into the canonical binary form.
func Marshal(v interface{}) ([]byte, error) {
	return Mode.Marshal(v)
}

// Unmarshal decodes canonical binary data into v.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// IsCanonical reports whether data is already in canonical form.
func IsCanonical(data []byte) bool {
	var v interface{}
	if err := cbor.Unmarshal(data, &v); err != nil {
		return false
	}
	re, err := Mode.Marshal(v)
	if err != nil {
		return false
	}
	return bytes.Equal(data, re)
}

// EncodeForSigning marshals v to a map, deletes the named fields (typically
// the signature field itself), and re-encodes canonically. Used to produce
// the exact byte string that a header's signature was computed over.
func EncodeForSigning(v interface{}, excludeFields ...string) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, f := range excludeFields {
		delete(m, f)
	}
	return Marshal(m)
}
