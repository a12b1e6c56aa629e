package presplit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/presplit/internal/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "_id", cfg.ShardKey)
	require.Equal(t, "UTC", cfg.TimeZone)
	require.Equal(t, 30*time.Minute, cfg.OperationTimeout)
	require.Equal(t, "config", cfg.Mongo.ConfigDatabase)
	require.Equal(t, MarkerBackendMongo, cfg.Markers.Backend)
	require.Equal(t, "presplit-markers", cfg.Markers.Bucket)
	require.Empty(t, cfg.Namespace)
	require.Empty(t, cfg.Shards)
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		require.Equal(t, "_id", cfg.ShardKey)
		require.Equal(t, "UTC", cfg.TimeZone)
		require.Equal(t, 30*time.Minute, cfg.OperationTimeout)
		require.Equal(t, "markers", cfg.Markers.Collection)
		require.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			ShardKey:         "oid",
			TimeZone:         "Europe/Berlin",
			OperationTimeout: time.Hour,
			Markers:          MarkerConfig{Backend: MarkerBackendBolt, Path: "/var/lib/presplit.db"},
		}
		SetDefaults(&cfg)

		require.Equal(t, "oid", cfg.ShardKey)
		require.Equal(t, "Europe/Berlin", cfg.TimeZone)
		require.Equal(t, time.Hour, cfg.OperationTimeout)
		require.Equal(t, MarkerBackendBolt, cfg.Markers.Backend)
		require.Equal(t, "/var/lib/presplit.db", cfg.Markers.Path)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"namespace without collection", func(c *Config) { c.Namespace = "events" }, "namespace"},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, "namespace"},
		{"no shards", func(c *Config) { c.Shards = nil }, "at least one shard"},
		{"empty shard name", func(c *Config) { c.Shards = []string{"a", ""} }, "must not be empty"},
		{"unknown zone", func(c *Config) { c.TimeZone = "Mars/Olympus" }, "timeZone"},
		{"zero timeout", func(c *Config) { c.OperationTimeout = -time.Second }, "operationTimeout"},
		{"unknown backend", func(c *Config) { c.Markers.Backend = "redis" }, "unknown marker backend"},
		{"bolt without path", func(c *Config) { c.Markers.Backend = MarkerBackendBolt }, "path"},
		{"kv without url", func(c *Config) {
			c.Markers.Backend = MarkerBackendKV
			c.NATS.URL = ""
		}, "nats.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TestConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	cfg := TestConfig()
	cfg.Shards = []string{"a", "a"}
	cfg.OperationTimeout = 5 * time.Second

	logger := logging.NewTest(t)
	cfg.ValidateWithWarnings(logger)

	// duplicate shard, memory markers, short timeout
	require.Len(t, logger.Entries("WARN"), 3)
}

func TestConfig_Location(t *testing.T) {
	cfg := TestConfig()
	require.Equal(t, time.UTC, cfg.Location())

	cfg.TimeZone = "Asia/Taipei"
	require.Equal(t, "Asia/Taipei", cfg.Location().String())

	cfg.TimeZone = "Nowhere/Special"
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presplit.yaml")
	data := `
namespace: app.events
shards: [shard-a, shard-b]
timeZone: Asia/Taipei
operationTimeout: 45m
mongo:
  uri: mongodb://mongos:27017
  countMovedDocuments: true
markers:
  backend: kv
  bucket: events-markers
nats:
  url: nats://nats:4222
metrics:
  textfile: /var/lib/node_exporter/presplit.prom
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "app.events", cfg.Namespace)
	require.Equal(t, "_id", cfg.ShardKey, "default applied")
	require.Equal(t, []string{"shard-a", "shard-b"}, cfg.Shards)
	require.Equal(t, 45*time.Minute, cfg.OperationTimeout)
	require.True(t, cfg.Mongo.CountMovedDocuments)
	require.Equal(t, "config", cfg.Mongo.ConfigDatabase)
	require.Equal(t, MarkerBackendKV, cfg.Markers.Backend)
	require.Equal(t, "events-markers", cfg.Markers.Bucket)
	require.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	require.Equal(t, "/var/lib/node_exporter/presplit.prom", cfg.Metrics.Textfile)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("namespace: app.events\nshards: [a]\nbogus: 1\n"))
	require.ErrorIs(t, err, ErrInvalidConfig, "unknown fields are rejected")

	_, err = ParseConfig(strings.NewReader("namespace: app.events\n"))
	require.ErrorIs(t, err, ErrInvalidConfig, "shards are required")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
