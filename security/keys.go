package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const keyPrefix = "pg_live_"

// GenerateOperatorKey returns a fresh operator API key and its hash. The raw
// key is shown once at provisioning time; only the hash is stored.
func GenerateOperatorKey() (key, hash string, err error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate key material: %w", err)
	}

	key = keyPrefix + hex.EncodeToString(keyBytes)
	return key, HashKey(key), nil
}

// HashKey maps a presented key to its stored form. Lookups go through the
// hash, so the raw key never touches the database.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// VerifyKeyHash compares a presented key against a stored hash without
// leaking how much of the prefix matched.
func VerifyKeyHash(key, storedHash string) bool {
	return hmac.Equal([]byte(HashKey(key)), []byte(storedHash))
}

// GenerateSigningSecret returns the per-operator HMAC secret handed out at
// provisioning. Stored encrypted, never hashed, since the verifier needs the
// plaintext back.
func GenerateSigningSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return hex.EncodeToString(secretBytes), nil
}
