// Package checksum computes the content fingerprints used for deduplication.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/paperasse/internal/analyzer"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// TextSum fingerprints extracted text after whitespace normalization, so
// two scans of the same page with different line breaks collide. Empty
// text has no fingerprint.
func TextSum(text string) string {
	normalized := analyzer.Normalize(text)
	if normalized == "" {
		return ""
	}
	return Sum([]byte(normalized))
}
