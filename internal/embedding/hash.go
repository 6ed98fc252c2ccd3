package embedding

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of text.
//
// The digest gates re-embedding: if the stored fingerprint for a note equals
// the fingerprint of its current content, the indexer skips the run entirely.
// Cryptographic strength matters here because a collision would silently
// suppress re-indexing.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
