package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 15, cfg.Fetch.TimeoutSeconds)
	require.False(t, cfg.Render.Enabled)
	require.Equal(t, 15*time.Second, cfg.NavTimeout())
	require.Equal(t, 3*time.Second, cfg.ContentPollBudget())
	require.Equal(t, 2, cfg.Render.MaxImagePayloadMB)
	require.Equal(t, 4, cfg.Enrich.Workers)
	require.Equal(t, 64, cfg.Enrich.QueueDepth)
	require.Equal(t, "memory", cfg.Snapshot.Provider)
	require.Equal(t, time.Hour, cfg.ImageCacheTTL())
	require.Contains(t, cfg.Images.PlaceholderFormat, "placehold.co")
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
fetch:
  timeout_seconds: 5
render:
  enabled: true
  max_parallel: 3
snapshot:
  provider: local
  local_dir: /var/snapshots
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.FetchTimeout())
	require.True(t, cfg.Render.Enabled)
	require.Equal(t, 3, cfg.Render.MaxParallel)
	require.Equal(t, "local", cfg.Snapshot.Provider)
	require.Equal(t, 3*time.Second, cfg.ContentPollBudget(), "file values merge over defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DISCOVERY_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero fetch timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, "fetch.timeout_seconds"},
		{"render enabled without parallel", func(c *Config) {
			c.Render.Enabled = true
			c.Render.MaxParallel = 0
		}, "render.max_parallel"},
		{"zero workers", func(c *Config) { c.Enrich.Workers = 0 }, "enrich.workers"},
		{"gcs without bucket", func(c *Config) { c.Snapshot.Provider = "gcs" }, "gcs_bucket"},
		{"local without dir", func(c *Config) { c.Snapshot.Provider = "local" }, "local_dir"},
		{"unknown provider", func(c *Config) { c.Snapshot.Provider = "s3" }, "unknown snapshot provider"},
		{"pubsub without topic", func(c *Config) {
			c.PubSub.Enabled = true
			c.PubSub.ProjectID = "proj"
		}, "topic_name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
