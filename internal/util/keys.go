package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// maxPlainKey is the longest host key embedded verbatim in a storage key.
const maxPlainKey = 128

// StorageKey returns "<prefix>:<hostKey>", replacing over-long host keys with a short
// hash so every provider accepts the result.
func StorageKey(prefix, hostKey string) string {
	if len(hostKey) <= maxPlainKey {
		return prefix + ":" + hostKey
	}
	return prefix + ":h:" + Redact(hostKey)
}

// Redact returns the first 8 bytes of the SHA-256 of k, hex encoded.
func Redact(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}
