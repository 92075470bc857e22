package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Jobs.Ingest.Concurrency)
	require.Equal(t, 3, cfg.Jobs.Ingest.MaxAttempts)
	require.Equal(t, 168*time.Hour, cfg.DiscoveryInterval())
	require.Equal(t, time.Hour, cfg.FeedPollInterval())
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
	require.Equal(t, "memory", cfg.Storage.Provider)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
feeds:
  poll_interval_minutes: 30
jobs:
  ingest:
    concurrency: 8
    max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 30*time.Minute, cfg.FeedPollInterval())
	require.Equal(t, 8, cfg.Jobs.Ingest.Concurrency)
	require.Equal(t, 5, cfg.Jobs.Ingest.MaxAttempts)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Storage.Provider = "gcs"
	require.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Jobs.Analysis.MaxAttempts = 0
	require.Error(t, cfg.Validate())
}
