// Package checksum fingerprints vault notes and rendered output so unchanged
// files are neither re-indexed nor rewritten.
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

// Same reports whether a and b have identical content.
func Same(a, b []byte) bool {
	return len(a) == len(b) && sha256.Sum256(a) == sha256.Sum256(b)
}

// Short returns the first 12 characters of a digest for log output.
func Short(sum string) string {
	if len(sum) <= 12 {
		return sum
	}
	return sum[:12]
}
