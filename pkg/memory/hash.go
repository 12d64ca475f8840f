package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex-encoded sha256 digest of text. The digest keys
// the embedding cache, so it must be stable across runs and processes.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
