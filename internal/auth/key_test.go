// SPDX-License-Identifier: MIT

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	gen, err := GenerateAPIKey(EnvLive)
	require.NoError(t, err)

	require.True(t, ValidKeyFormat(gen.Full), "generated key must match canonical format: %s", gen.Full)
	require.Len(t, gen.Hash, 64)
	require.Len(t, gen.Prefix, len("cs_live_")+4)
	require.Equal(t, gen.Full[:len(gen.Prefix)], gen.Prefix)

	// hashing the full key reproduces the stored hash
	require.Equal(t, gen.Hash, HashAPIKey(gen.Full))
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		gen, err := GenerateAPIKey(EnvTest)
		require.NoError(t, err)
		require.False(t, seen[gen.Full])
		seen[gen.Full] = true
	}
}

func TestGenerateAPIKey_UnknownEnv(t *testing.T) {
	_, err := GenerateAPIKey("staging")
	require.Error(t, err)
}

func TestValidKeyFormat(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"cs_live_0123456789abcdef0123456789abcdef", true},
		{"cs_test_0123456789abcdef0123456789abcdef", true},
		{"cs_prod_0123456789abcdef0123456789abcdef", false},
		{"cs_live_0123456789ABCDEF0123456789ABCDEF", false},
		{"cs_live_0123", false},
		{"sk-something-else-entirely", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ValidKeyFormat(tt.key), tt.key)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, ConstantTimeEqual("abc", "abc"))
	require.False(t, ConstantTimeEqual("abc", "abd"))
	require.False(t, ConstantTimeEqual("", ""))
}
