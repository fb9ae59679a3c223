// Package canon provides RFC 8785 (JSON Canonicalization Scheme) hashing:
// the same logical value always serializes to the same bytes, so content
// hashes are reproducible across processes and platforms.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v. Struct tags
// are respected via a standard marshal before canonicalization.
func JCS(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canon: transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v any) (string, error) {
	canonical, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns the hex
// string.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
