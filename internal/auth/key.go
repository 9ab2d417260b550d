// SPDX-License-Identifier: MIT

// Package auth implements API-key credentials and the request middleware
// that resolves them into a tenant principal. Full keys exist only at
// generation time; storage sees hash and prefix.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Key environments. The environment is embedded in the key so operators can
// tell credentials apart at a glance.
const (
	EnvLive = "live"
	EnvTest = "test"
)

const (
	keySecretBytes = 16 // 32 hex chars
	prefixHexChars = 4
)

var keyPattern = regexp.MustCompile(`^cs_(live|test)_[0-9a-f]{32}$`)

// GeneratedKey is the one-time result of key creation. Full is shown to the
// caller exactly once; Hash and Prefix are what persists.
type GeneratedKey struct {
	Full   string
	Hash   string
	Prefix string
}

// GenerateAPIKey creates a key of the form cs_{env}_{32 hex chars} from
// crypto/rand.
func GenerateAPIKey(env string) (*GeneratedKey, error) {
	if env != EnvLive && env != EnvTest {
		return nil, fmt.Errorf("auth: unknown key environment %q", env)
	}
	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("auth: generate key: %w", err)
	}
	hexSecret := hex.EncodeToString(secret)
	full := fmt.Sprintf("cs_%s_%s", env, hexSecret)
	return &GeneratedKey{
		Full:   full,
		Hash:   HashAPIKey(full),
		Prefix: fmt.Sprintf("cs_%s_%s", env, hexSecret[:prefixHexChars]),
	}, nil
}

// HashAPIKey returns the hex SHA-256 of the full key. Lookup is by hash, so
// a database leak never exposes usable credentials.
func HashAPIKey(full string) string {
	sum := sha256.Sum256([]byte(full))
	return hex.EncodeToString(sum[:])
}

// ValidKeyFormat reports whether a presented key is even shaped like one of
// ours. Malformed keys are rejected before any storage round-trip.
func ValidKeyFormat(full string) bool {
	return keyPattern.MatchString(full)
}

// ConstantTimeEqual compares two hex digests without leaking timing.
func ConstantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
