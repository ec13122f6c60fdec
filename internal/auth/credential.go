package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/flagwell/flagwell/internal/model"
)

// secretLength is the number of random bytes hex-encoded into the
// credential's secret portion (64 hex characters).
const secretLength = 32

// GenerateSDKCredential produces a new prefixed credential for credType and
// the SHA-256 hash under which it is stored. The raw value is returned to
// the caller exactly once; only the hash is ever persisted, matching the
// store's O(1) hash-lookup requirement (a credential can't use a
// non-deterministic hash like bcrypt, since lookup has no candidate key to
// re-salt against).
func GenerateSDKCredential(credType model.CredentialType) (raw string, hash string, err error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate credential secret: %w", err)
	}
	raw = credType.Prefix() + hex.EncodeToString(buf)
	return raw, HashCredential(raw), nil
}

// HashCredential returns the SHA-256 hex digest of a raw credential value,
// the value stored in SDKCredential.KeyHash and used as the store lookup
// key.
func HashCredential(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeSDKCredential reports whether token carries one of the SDK
// credential prefixes, used to pick the verifier branch before any store
// lookup happens.
func LooksLikeSDKCredential(token string) bool {
	return len(token) > 4 && (token[:4] == model.CredentialServer.Prefix() || token[:4] == model.CredentialClient.Prefix())
}
