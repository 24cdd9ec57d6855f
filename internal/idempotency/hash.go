package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBody returns the canonical request hash stored alongside a record.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
