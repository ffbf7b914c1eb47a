// Package config loads the lessonbot configuration: the shared core sections
// plus database, upload, metrics and admin seeding.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"
	coredatabase "github.com/m3rciful/lessonbot/core/database"
)

// UploadConfig tunes the upload workflow.
type UploadConfig struct {
	// SessionIdleTimeout of 0 keeps abandoned sessions until restart.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout" envconfig:"UPLOAD_SESSION_IDLE_TIMEOUT"`
	SweepInterval      time.Duration `yaml:"sweep_interval" envconfig:"UPLOAD_SWEEP_INTERVAL"`
	DefaultCategory    string        `yaml:"default_category" envconfig:"UPLOAD_DEFAULT_CATEGORY"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Upload   UploadConfig        `yaml:"upload"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	// Admins are granted the admin flag on every start.
	Admins []int64 `yaml:"admins" envconfig:"ADMIN_IDS"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase reads only what the migrate and admin commands need, so they
// work without a bot token.
func LoadDatabase(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Upload.SessionIdleTimeout < 0 {
		return fmt.Errorf("upload.session_idle_timeout must be >= 0")
	}
	if c.Upload.SweepInterval < 0 {
		return fmt.Errorf("upload.sweep_interval must be >= 0")
	}
	if c.Upload.SessionIdleTimeout > 0 && c.Upload.SweepInterval == 0 {
		c.Upload.SweepInterval = time.Minute
	}
	c.Upload.DefaultCategory = strings.TrimSpace(c.Upload.DefaultCategory)
	if c.Upload.DefaultCategory == "" {
		c.Upload.DefaultCategory = "General"
	}
	for _, id := range c.Admins {
		if id <= 0 {
			return fmt.Errorf("admins: invalid user id %d", id)
		}
	}
	return nil
}
