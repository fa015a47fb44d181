package exportimport

import (
	"crypto/sha256"
	"encoding/hex"
)

// contentSHA256Hex hashes chunk content for export provenance and import
// dedupe, matching the cache-fingerprint convention embed/cache.go already
// uses for embedding cache keys.
func contentSHA256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
