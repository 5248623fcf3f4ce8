package textutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// KeyedRef derives a reference for seed that cannot be recomputed without
// key, e.g. "REQ_3f9a0c17d2b84e65". The same key, seed and prefix always
// give the same ref.
func KeyedRef(key []byte, seed, prefix string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(seed))
	return prefix + "_" + hex.EncodeToString(mac.Sum(nil))[:16]
}

// HashMask replaces value with a one-way placeholder of the form <HASH_xxxxxxxxxx>.
func HashMask(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "<HASH_" + hex.EncodeToString(sum[:])[:10] + ">"
}
