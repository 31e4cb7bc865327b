package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken is the deterministic one-way lookup key for the session
// ledger. Raw tokens never touch the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
