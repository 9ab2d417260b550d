// SPDX-License-Identifier: MIT

package config

import (
	"github.com/coursesmith/coursesmith/internal/validate"
)

// Validate checks the final merged configuration. All problems are reported
// at once.
func Validate(cfg Config) error {
	v := validate.New()

	if cfg.Server.Addr == "" {
		v.AddError("server.addr", "listen address is required", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		v.AddError("server.max_upload_bytes", "must be positive", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.IPRateLimit < 0 {
		v.AddError("server.ip_rate_limit", "must not be negative", cfg.Server.IPRateLimit)
	}

	if cfg.Database.Path == "" {
		v.AddError("database.path", "database path is required", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns <= 0 {
		v.AddError("database.max_open_conns", "must be positive", cfg.Database.MaxOpenConns)
	}

	if cfg.Redis.Addr == "" {
		v.AddError("redis.addr", "redis address is required", cfg.Redis.Addr)
	}
	if cfg.Blobs.Path == "" {
		v.AddError("blobs.path", "blob storage path is required", cfg.Blobs.Path)
	}

	if _, err := cfg.WorkWindow.Window(); err != nil {
		v.Addf("work_window", "invalid window: %v", err)
	}

	if cfg.RateLimit.Window < 0 {
		v.AddError("rate_limit.window", "must not be negative", cfg.RateLimit.Window)
	}

	if cfg.Worker.Concurrency <= 0 {
		v.AddError("worker.concurrency", "must be positive", cfg.Worker.Concurrency)
	}
	if cfg.Worker.TaskTimeout <= 0 {
		v.AddError("worker.task_timeout", "must be positive", cfg.Worker.TaskTimeout)
	}
	if cfg.Worker.DependencyRetry <= 0 {
		v.AddError("worker.dependency_retry", "must be positive", cfg.Worker.DependencyRetry)
	}

	if cfg.Registry.Path == "" {
		v.AddError("registry.path", "model registry path is required", cfg.Registry.Path)
	}

	return v.Err()
}
