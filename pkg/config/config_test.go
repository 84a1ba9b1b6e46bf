package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "search-index", cfg.Indexer.DirName)
	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "search_pdf_", cfg.Search.OutputPrefix)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  workers: 8
search:
  timeout: 5s
redis:
  enabled: true
  addr: cache:6379
`), 0644))
	t.Setenv("DET_INDEXER_WORKERS", "2")
	t.Setenv("DET_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DET_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Indexer.Workers, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "search-index", cfg.Indexer.DirName, "unset fields keep defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexer: ["), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"nested dir name", func(c *Config) { c.Indexer.DirName = "a/b" }, "plain directory name"},
		{"empty dir name", func(c *Config) { c.Indexer.DirName = "" }, "plain directory name"},
		{"no workers", func(c *Config) { c.Indexer.Workers = 0 }, "workers must be positive"},
		{"rate window", func(c *Config) { c.Server.RateWindow = 0 }, "rateWindow"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := Default().Postgres
	assert.Equal(t, "host=localhost port=5432 user=detsearch password=localdev dbname=detsearch sslmode=disable", p.DSN())
}
