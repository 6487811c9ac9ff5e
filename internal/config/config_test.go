package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tenantrpc.yaml", `
listen: 0.0.0.0:9000
session_ttl: 30m
rate_limit:
  rps: 5
  burst: 10
seed: seed.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, RateLimit{RPS: 5, Burst: 10}, cfg.RateLimit)
	assert.Equal(t, filepath.Join(dir, "seed.yaml"), cfg.Seed)

	// untouched keys keep their defaults
	assert.Equal(t, "tenantrpc.db", cfg.Database)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.Metrics)
}

func TestLoad_EmptyFileIsDefault(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "listn: x\n", "failed to parse config"},
		{"bad duration", "session_ttl: soon\n", "failed to parse config"},
		{"negative ttl", "session_ttl: -1h\n", "session_ttl must be positive"},
		{"bcrypt cost", "bcrypt_cost: 2\n", "bcrypt_cost 2 out of range"},
		{"burst missing", "rate_limit: {rps: 3, burst: 0}\n", "rate_limit.burst is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "c.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_DisabledRateLimit(t *testing.T) {
	cfg := Default()
	cfg.RateLimit = RateLimit{}
	assert.NoError(t, cfg.Validate())
}
