package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncMode is the deterministic CBOR encoder used for every
// params_hash and for tool-definition blob bytes in this package (spec.md
// §4.10, §6); follow-up message blobs are hashed over their JSON bytes
// instead. Map keys are sorted per RFC 8949 §4.2.1 core deterministic
// encoding, so two independent encodes of an equal Go value always
// produce byte-identical output.
var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic("workflow: failed to build canonical CBOR encoder: " + err.Error())
	}
	return mode
}()

// canonicalCBOR encodes v using the canonical deterministic encoding.
func canonicalCBOR(v any) ([]byte, error) {
	return canonicalEncMode.Marshal(v)
}

// paramsHash computes "sha256:" + hex(lower) over the canonical CBOR
// encoding of v, the sole correlation key between emitted effect commands
// and incoming receipts (spec.md glossary "params_hash").
func paramsHash(v any) string {
	encoded, err := canonicalCBOR(v)
	if err != nil {
		// v is always one of this package's own structs; a marshal
		// failure here is a programmer error, not a runtime condition
		// the pure reducer can recover from deterministically.
		panic("workflow: failed to canonically encode params: " + err.Error())
	}
	return hashBytes(encoded)
}

// jsonParamsHash decodes a JSON-encoded tool-effect params payload into a
// generic value and hashes it via the same canonical CBOR path as
// paramsHash, so a tool effect's params_hash is stable regardless of the
// key order encoding/json happened to produce when the mapper built it.
func jsonParamsHash(paramsJSON string) string {
	var v any
	if err := json.Unmarshal([]byte(paramsJSON), &v); err != nil {
		panic("workflow: tool params are not valid JSON: " + err.Error())
	}
	return paramsHash(v)
}

// hashBytes formats "sha256:" + hex(lower) over raw bytes. paramsHash uses
// it for every params_hash; followup.go uses it directly for follow-up
// message blob hashes and a settled batch's ResultsRef.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
