package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "servers", cfg.Database.ServersCollection)
	assert.Equal(t, "badips", cfg.Database.BadIPsCollection)
	assert.Equal(t, 16, cfg.Processing.Workers)
	assert.Equal(t, 500, cfg.Processing.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Rescan.Interval)
	assert.Equal(t, "oldest", cfg.Rescan.Sort)
	assert.Equal(t, 2*time.Hour, cfg.Fingerprint.OnlineWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.Fingerprint.Cooldown)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matscan.yaml")
	data := `
database:
  uri: mongodb://db.internal:27017
  database: crawl
processing:
  workers: 64
rescan:
  interval: 1h
  sort: random
fingerprint:
  cooldown: 336h
webhook:
  url: https://hooks.example.com/notify
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Database.URI)
	assert.Equal(t, "crawl", cfg.Database.Database)
	assert.Equal(t, 64, cfg.Processing.Workers)
	assert.Equal(t, time.Hour, cfg.Rescan.Interval)
	assert.Equal(t, "random", cfg.Rescan.Sort)
	assert.Equal(t, 14*24*time.Hour, cfg.Fingerprint.Cooldown)
	assert.Equal(t, "https://hooks.example.com/notify", cfg.Webhook.URL)

	// Untouched fields keep their defaults.
	assert.Equal(t, "servers", cfg.Database.ServersCollection)
	assert.Equal(t, 500, cfg.Processing.BatchSize)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"empty uri", func(c *Config) { c.Database.URI = "" }, true},
		{"zero workers", func(c *Config) { c.Processing.Workers = 0 }, true},
		{"negative batch size", func(c *Config) { c.Processing.BatchSize = -1 }, true},
		{"bad sort mode", func(c *Config) { c.Rescan.Sort = "newest" }, true},
		{"bad webhook url", func(c *Config) { c.Webhook.URL = "not a url" }, true},
		{"empty webhook url allowed", func(c *Config) { c.Webhook.URL = "" }, false},
		{"zero cooldown", func(c *Config) { c.Fingerprint.Cooldown = 0 }, true},
		{
			"staleness not exceeding interval",
			func(c *Config) {
				c.Rescan.Interval = time.Hour
				c.Rescan.MaxStaleness = time.Hour
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
