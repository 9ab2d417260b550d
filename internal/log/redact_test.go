// SPDX-License-Identifier: MIT

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	in := map[string]any{
		"api_key":       "cs_live_deadbeef",
		"Authorization": "Bearer xyz",
		"tenant_id":     "t-1",
		"count":         3,
	}

	out := Redact(in)

	require.Equal(t, RedactedValue, out["api_key"])
	require.Equal(t, RedactedValue, out["Authorization"])
	require.Equal(t, "t-1", out["tenant_id"])
	require.Equal(t, 3, out["count"])

	// input untouched
	require.Equal(t, "cs_live_deadbeef", in["api_key"])
}

func TestIsSensitiveKey(t *testing.T) {
	for _, k := range []string{"api_key", "KEY_HASH", "password", "secret", "Token", "authorization"} {
		require.True(t, IsSensitiveKey(k), k)
	}
	require.False(t, IsSensitiveKey("course_id"))
}
