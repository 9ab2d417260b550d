// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/coursesmith/coursesmith/internal/log"
)

// Environment variable names. Every override carries the COURSESMITH_
// prefix; unknown variables under that prefix are ignored.
const (
	EnvServerAddr     = "COURSESMITH_SERVER_ADDR"
	EnvServerDebug    = "COURSESMITH_SERVER_DEBUG"
	EnvIPRateLimit    = "COURSESMITH_SERVER_IP_RATE_LIMIT"
	EnvMaxUploadBytes = "COURSESMITH_SERVER_MAX_UPLOAD_BYTES"

	EnvDatabasePath = "COURSESMITH_DATABASE_PATH"

	EnvRedisAddr     = "COURSESMITH_REDIS_ADDR"
	EnvRedisPassword = "COURSESMITH_REDIS_PASSWORD"
	EnvRedisDB       = "COURSESMITH_REDIS_DB"

	EnvBlobPath = "COURSESMITH_BLOBS_PATH"

	EnvWindowEnabled  = "COURSESMITH_WORK_WINDOW_ENABLED"
	EnvWindowStart    = "COURSESMITH_WORK_WINDOW_START"
	EnvWindowEnd      = "COURSESMITH_WORK_WINDOW_END"
	EnvWindowTimezone = "COURSESMITH_WORK_WINDOW_TIMEZONE"

	EnvRateLimitWindow = "COURSESMITH_RATE_LIMIT_WINDOW"

	EnvWorkerConcurrency     = "COURSESMITH_WORKER_CONCURRENCY"
	EnvWorkerTaskTimeout     = "COURSESMITH_WORKER_TASK_TIMEOUT"
	EnvWorkerDependencyRetry = "COURSESMITH_WORKER_DEPENDENCY_RETRY"

	EnvRegistryPath = "COURSESMITH_REGISTRY_PATH"

	EnvOpenAIKey    = "COURSESMITH_OPENAI_API_KEY"
	EnvAnthropicKey = "COURSESMITH_ANTHROPIC_API_KEY"
	EnvGeminiKey    = "COURSESMITH_GEMINI_API_KEY"

	EnvMediaBaseURL = "COURSESMITH_MEDIA_BASE_URL"
	EnvMediaTimeout = "COURSESMITH_MEDIA_TIMEOUT"

	EnvLogLevel   = "COURSESMITH_LOG_LEVEL"
	EnvLogService = "COURSESMITH_LOG_SERVICE"
)

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid boolean in environment variable, using fallback")
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid integer in environment variable, using fallback")
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid integer in environment variable, using fallback")
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid duration in environment variable, using fallback")
		return fallback
	}
	return d
}

// applyEnv overlays environment variables onto cfg. ENV wins over both file
// and defaults.
func applyEnv(cfg *Config) {
	cfg.Server.Addr = envString(EnvServerAddr, cfg.Server.Addr)
	cfg.Server.Debug = envBool(EnvServerDebug, cfg.Server.Debug)
	cfg.Server.IPRateLimit = envInt(EnvIPRateLimit, cfg.Server.IPRateLimit)
	cfg.Server.MaxUploadBytes = envInt64(EnvMaxUploadBytes, cfg.Server.MaxUploadBytes)

	cfg.Database.Path = envString(EnvDatabasePath, cfg.Database.Path)

	cfg.Redis.Addr = envString(EnvRedisAddr, cfg.Redis.Addr)
	cfg.Redis.Password = envString(EnvRedisPassword, cfg.Redis.Password)
	cfg.Redis.DB = envInt(EnvRedisDB, cfg.Redis.DB)

	cfg.Blobs.Path = envString(EnvBlobPath, cfg.Blobs.Path)

	cfg.WorkWindow.Enabled = envBool(EnvWindowEnabled, cfg.WorkWindow.Enabled)
	cfg.WorkWindow.Start = envString(EnvWindowStart, cfg.WorkWindow.Start)
	cfg.WorkWindow.End = envString(EnvWindowEnd, cfg.WorkWindow.End)
	cfg.WorkWindow.Timezone = envString(EnvWindowTimezone, cfg.WorkWindow.Timezone)

	cfg.RateLimit.Window = envDuration(EnvRateLimitWindow, cfg.RateLimit.Window)

	cfg.Worker.Concurrency = envInt64(EnvWorkerConcurrency, cfg.Worker.Concurrency)
	cfg.Worker.TaskTimeout = envDuration(EnvWorkerTaskTimeout, cfg.Worker.TaskTimeout)
	cfg.Worker.DependencyRetry = envDuration(EnvWorkerDependencyRetry, cfg.Worker.DependencyRetry)

	cfg.Registry.Path = envString(EnvRegistryPath, cfg.Registry.Path)

	cfg.Providers.OpenAI.APIKey = envString(EnvOpenAIKey, cfg.Providers.OpenAI.APIKey)
	cfg.Providers.Anthropic.APIKey = envString(EnvAnthropicKey, cfg.Providers.Anthropic.APIKey)
	cfg.Providers.Gemini.APIKey = envString(EnvGeminiKey, cfg.Providers.Gemini.APIKey)

	cfg.Media.BaseURL = envString(EnvMediaBaseURL, cfg.Media.BaseURL)
	cfg.Media.Timeout = envDuration(EnvMediaTimeout, cfg.Media.Timeout)

	cfg.Logging.Level = envString(EnvLogLevel, cfg.Logging.Level)
	cfg.Logging.Service = envString(EnvLogService, cfg.Logging.Service)
}
