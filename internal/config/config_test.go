// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, int64(4), cfg.Worker.Concurrency)
	require.False(t, cfg.WorkWindow.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
work_window:
  enabled: true
  start: "22:00"
  end: "06:00"
  timezone: "Europe/Berlin"
providers:
  openai:
    api_key: "sk-test"
    default_model: "gpt-test"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.True(t, cfg.WorkWindow.Enabled)
	require.True(t, cfg.Providers.OpenAI.Enabled())
	require.False(t, cfg.Providers.Anthropic.Enabled())

	w, err := cfg.WorkWindow.Window()
	require.NoError(t, err)
	require.Equal(t, 22, w.Start.Hour)
	require.Equal(t, "Europe/Berlin", w.Location.String())
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
`)
	t.Setenv(EnvServerAddr, ":7070")
	t.Setenv(EnvWorkerTaskTimeout, "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Server.Addr)
	require.Equal(t, 30*time.Second, cfg.Worker.TaskTimeout)
}

func TestLoad_StrictFileParsing(t *testing.T) {
	path := writeConfig(t, `
server:
  adress: ":9090"
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "strict parse")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Database.Path = ""
	cfg.Worker.Concurrency = 0

	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.addr")
	require.Contains(t, err.Error(), "database.path")
	require.Contains(t, err.Error(), "worker.concurrency")
}

func TestValidate_BadWorkWindow(t *testing.T) {
	cfg := Default()
	cfg.WorkWindow.Enabled = true
	cfg.WorkWindow.Start = "25:00"

	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "work_window")
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("COURSESMITH_TEST_INT", "not-a-number")
	require.Equal(t, 7, envInt("COURSESMITH_TEST_INT", 7))

	t.Setenv("COURSESMITH_TEST_DUR", "soon")
	require.Equal(t, time.Minute, envDuration("COURSESMITH_TEST_DUR", time.Minute))

	t.Setenv("COURSESMITH_TEST_BOOL", "yep")
	require.True(t, envBool("COURSESMITH_TEST_BOOL", true))
}
