// Package checksum computes the content digests used to detect note changes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Equal reports whether data hashes to digest.
func Equal(data []byte, digest string) bool {
	return digest != "" && Sum(data) == digest
}
