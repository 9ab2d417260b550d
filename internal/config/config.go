// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with the precedence
// ENV > file > defaults. The loaded Config is a value; nothing mutates it
// after Load returns.
package config

import (
	"time"

	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/workwindow"
)

// Config is the full daemon configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Blobs      BlobConfig       `yaml:"blobs"`
	WorkWindow WorkWindowConfig `yaml:"work_window"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Worker     WorkerConfig     `yaml:"worker"`
	Registry   RegistryConfig   `yaml:"registry"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Media      MediaConfig      `yaml:"media"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	Debug          bool   `yaml:"debug"`
	IPRateLimit    int    `yaml:"ip_rate_limit"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// DatabaseConfig covers the SQLite store.
type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// StoreConfig converts to the store pool settings.
func (c DatabaseConfig) StoreConfig() store.Config {
	return store.Config{BusyTimeout: c.BusyTimeout, MaxOpenConns: c.MaxOpenConns}
}

// RedisConfig covers the task queue backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig converts to the queue client settings.
func (c RedisConfig) QueueConfig() queue.Config {
	return queue.Config{Addr: c.Addr, Password: c.Password, DB: c.DB}
}

// BlobConfig covers raw material object storage.
type BlobConfig struct {
	Path string `yaml:"path"`
}

// WorkWindowConfig describes when heavy normal-priority jobs may run.
// Times are "HH:MM" in the configured timezone; overnight windows are
// allowed. Disabled means 24/7.
type WorkWindowConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// Window resolves the configured window.
func (c WorkWindowConfig) Window() (workwindow.Window, error) {
	w := workwindow.Window{Enabled: c.Enabled}
	if !c.Enabled {
		return w, nil
	}
	var err error
	if w.Start, err = workwindow.ParseClockTime(c.Start); err != nil {
		return w, err
	}
	if w.End, err = workwindow.ParseClockTime(c.End); err != nil {
		return w, err
	}
	if c.Timezone != "" {
		if w.Location, err = time.LoadLocation(c.Timezone); err != nil {
			return w, err
		}
	}
	return w, nil
}

// RateLimitConfig covers the per-key sliding window.
type RateLimitConfig struct {
	Window time.Duration `yaml:"window"`
}

// WorkerConfig covers the queue consumer.
type WorkerConfig struct {
	Concurrency     int64         `yaml:"concurrency"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
	DependencyRetry time.Duration `yaml:"dependency_retry"`
}

// RegistryConfig points at the model registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig holds credentials per upstream. A provider with an empty
// API key is simply not registered.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

// ProviderConfig configures one upstream adapter.
type ProviderConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Enabled reports whether the provider has credentials.
func (c ProviderConfig) Enabled() bool { return c.APIKey != "" }

// MediaConfig points at the external media service handling transcription
// and slide extraction. An empty base URL disables video and presentation
// ingestion.
type MediaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether the media service is configured.
func (c MediaConfig) Enabled() bool { return c.BaseURL != "" }

// LoggingConfig covers the global logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Default returns the configuration used when neither file nor environment
// says otherwise.
func Default() Config {
	sc := store.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			IPRateLimit:    300,
			MaxUploadBytes: 512 << 20,
		},
		Database: DatabaseConfig{
			Path:         "data/coursesmith.db",
			BusyTimeout:  sc.BusyTimeout,
			MaxOpenConns: sc.MaxOpenConns,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Blobs: BlobConfig{Path: "data/blobs"},
		WorkWindow: WorkWindowConfig{
			Enabled:  false,
			Start:    "22:00",
			End:      "06:00",
			Timezone: "UTC",
		},
		RateLimit: RateLimitConfig{Window: time.Minute},
		Worker: WorkerConfig{
			Concurrency:     4,
			TaskTimeout:     10 * time.Minute,
			DependencyRetry: 30 * time.Second,
		},
		Registry:  RegistryConfig{Path: "config/models.yaml"},
		Providers: ProvidersConfig{},
		Logging:   LoggingConfig{Level: "info", Service: "coursesmith"},
	}
}
