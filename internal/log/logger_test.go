// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The component helpers are chained directly at most call sites
// (log.WithComponent("x").Error()...), so they must hand out addressable
// loggers.
func TestComponentHelpersChain(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})

	WithComponent("queue").Info().Str("task_id", "t-1").Msg("worker started")

	ctx := ContextWithTenantID(context.Background(), "tn-1")
	ctx = ContextWithJobID(ctx, "job-1")
	WithComponentFromContext(ctx, "jobs").Warn().Msg("estimate failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "queue", first["component"])
	require.Equal(t, "t-1", first["task_id"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "jobs", second["component"])
	require.Equal(t, "tn-1", second[FieldTenantID])
	require.Equal(t, "job-1", second[FieldJobID])
}

func TestWithContextWithoutFields(t *testing.T) {
	base := WithComponent("store")
	require.Same(t, base, WithContext(context.Background(), base))
}
