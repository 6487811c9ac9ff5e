// Package config loads the serve configuration and seed files.
//
// Both are YAML decoded with unknown-field rejection, so a misspelled key
// fails loudly instead of silently falling back to a default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the serve configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// SessionTTL bounds every issued session.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// SweepInterval is how often expired sessions are deleted.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// BcryptCost for seeded passwords. Zero means bcrypt.DefaultCost.
	BcryptCost int `yaml:"bcrypt_cost"`

	RateLimit RateLimit `yaml:"rate_limit"`

	// Metrics exposes GET /metrics when true.
	Metrics bool `yaml:"metrics"`

	// Seed is an optional seed file applied at startup. A relative path is
	// resolved against the config file's directory.
	Seed string `yaml:"seed,omitempty"`
}

// RateLimit configures the per-caller token bucket. RPS 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:        "127.0.0.1:8080",
		Database:      "tenantrpc.db",
		SessionTTL:    12 * time.Hour,
		SweepInterval: 10 * time.Minute,
		RateLimit:     RateLimit{RPS: 30, Burst: 60},
		Metrics:       true,
	}
}

// Load reads the config at path over Default. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := decodeStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Seed != "" && !filepath.IsAbs(cfg.Seed) {
		cfg.Seed = filepath.Join(filepath.Dir(path), cfg.Seed)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		errs = append(errs, fmt.Errorf("bcrypt_cost %d out of range 4..31", c.BcryptCost))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		errs = append(errs, errors.New("rate_limit.burst is required when rps is set"))
	}
	return errors.Join(errs...)
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
