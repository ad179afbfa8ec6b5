// Package canonicalize provides deterministic serialization and content
// fingerprinting for gate artifacts.
//
// Audit records never carry candidate text; they carry fingerprints
// computed here. Structured values are canonicalized with RFC 8785
// (JSON Canonicalization Scheme) before hashing so that the same logical
// content always produces the same digest.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// fingerprintLen is the number of hex characters exposed in audit
// payloads. Long enough to correlate, short enough to be obviously not
// content.
const fingerprintLen = 12

// JCS returns the RFC 8785 canonical JSON representation of v.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the full SHA-256 hex digest of the canonical
// JSON form of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns the short content fingerprint of a text: the
// first 12 hex characters of its SHA-256 digest, prefixed with the
// algorithm. This is the only text-derived value allowed in audit and
// trace payloads.
func Fingerprint(text string) string {
	return "sha256:" + HashBytes([]byte(text))[:fingerprintLen]
}
