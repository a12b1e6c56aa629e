package presplit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Marker store backends accepted in MarkerConfig.Backend.
const (
	MarkerBackendMongo  = "mongo"
	MarkerBackendKV     = "kv"
	MarkerBackendBolt   = "bolt"
	MarkerBackendMemory = "memory"
)

// MongoConfig configures the cluster connection used for the chunk catalog.
type MongoConfig struct {
	// URI is the mongos connection string.
	URI string `yaml:"uri"`

	// ConfigDatabase is the database holding the sharding catalog.
	// Default: "config"
	ConfigDatabase string `yaml:"configDatabase"`

	// CountMovedDocuments makes every move count the documents of the moved
	// range. The count is stored on the day's start marker.
	CountMovedDocuments bool `yaml:"countMovedDocuments"`
}

// MarkerConfig selects and configures the idempotency marker store.
type MarkerConfig struct {
	// Backend is one of "mongo", "kv", "bolt" or "memory".
	// Default: "mongo"
	Backend string `yaml:"backend"`

	// Bucket is the JetStream KV bucket for the "kv" backend.
	// Default: "presplit-markers"
	Bucket string `yaml:"bucket"`

	// Database and Collection locate marker documents for the "mongo" backend.
	// Defaults: "presplit" and "markers"
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`

	// Path is the marker file for the "bolt" backend.
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS connection used by the "kv" marker backend.
type NATSConfig struct {
	// URL is the NATS server URL.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, is where the CLI writes metrics in the Prometheus
	// text format after each run, for the node exporter textfile collector.
	Textfile string `yaml:"textfile"`
}

// Config is the configuration for a PreSplitter and the presplit CLI.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Namespace is the sharded collection, "<database>.<collection>".
	Namespace string `yaml:"namespace"`

	// ShardKey is the field the collection is sharded on. Its values must be
	// 12-byte ObjectIDs with a leading timestamp.
	// Default: "_id"
	ShardKey string `yaml:"shardKey"`

	// Shards receive the pieces of every divided chunk in order: shard i gets
	// the i-th sub-range.
	Shards []string `yaml:"shards"`

	// TimeZone is the IANA zone whose midnights and noons bound a day.
	// Default: "UTC"
	TimeZone string `yaml:"timeZone"`

	// OperationTimeout bounds one run of the presplit command, including
	// every day of a -from/-to range. Chunk migrations are slow, so this
	// should be generous.
	// Default: 30 minutes
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	Mongo   MongoConfig   `yaml:"mongo"`
	Markers MarkerConfig  `yaml:"markers"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Namespace and Shards have no default and must be set.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		ShardKey:         "_id",
		TimeZone:         "UTC",
		OperationTimeout: 30 * time.Minute,
		Mongo: MongoConfig{
			URI:            "mongodb://127.0.0.1:27017",
			ConfigDatabase: "config",
		},
		Markers: MarkerConfig{
			Backend:    MarkerBackendMongo,
			Bucket:     "presplit-markers",
			Database:   "presplit",
			Collection: "markers",
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ShardKey == "" {
		cfg.ShardKey = defaults.ShardKey
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaults.TimeZone
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = defaults.Mongo.URI
	}
	if cfg.Mongo.ConfigDatabase == "" {
		cfg.Mongo.ConfigDatabase = defaults.Mongo.ConfigDatabase
	}
	if cfg.Markers.Backend == "" {
		cfg.Markers.Backend = defaults.Markers.Backend
	}
	if cfg.Markers.Bucket == "" {
		cfg.Markers.Bucket = defaults.Markers.Bucket
	}
	if cfg.Markers.Database == "" {
		cfg.Markers.Database = defaults.Markers.Database
	}
	if cfg.Markers.Collection == "" {
		cfg.Markers.Collection = defaults.Markers.Collection
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaults.NATS.URL
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - Namespace is "<database>.<collection>"
//   - ShardKey is set
//   - At least one shard, none empty
//   - TimeZone is a known location
//   - OperationTimeout > 0
//   - Markers.Backend is a known backend with its required settings
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	db, coll, ok := strings.Cut(cfg.Namespace, ".")
	if !ok || db == "" || coll == "" {
		return fmt.Errorf("%w: namespace %q must be <database>.<collection>", ErrInvalidConfig, cfg.Namespace)
	}

	if cfg.ShardKey == "" {
		return fmt.Errorf("%w: shardKey is required", ErrInvalidConfig)
	}

	if len(cfg.Shards) == 0 {
		return fmt.Errorf("%w: at least one shard is required", ErrInvalidConfig)
	}
	if slices.Contains(cfg.Shards, "") {
		return fmt.Errorf("%w: shard names must not be empty", ErrInvalidConfig)
	}

	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("%w: timeZone %q: %w", ErrInvalidConfig, cfg.TimeZone, err)
	}

	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: operationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}

	switch cfg.Markers.Backend {
	case MarkerBackendMongo:
		if cfg.Markers.Database == "" || cfg.Markers.Collection == "" {
			return fmt.Errorf("%w: mongo markers need database and collection", ErrInvalidConfig)
		}
	case MarkerBackendKV:
		if cfg.Markers.Bucket == "" || cfg.NATS.URL == "" {
			return fmt.Errorf("%w: kv markers need a bucket and nats.url", ErrInvalidConfig)
		}
	case MarkerBackendBolt:
		if cfg.Markers.Path == "" {
			return fmt.Errorf("%w: bolt markers need a path", ErrInvalidConfig)
		}
	case MarkerBackendMemory:
	default:
		return fmt.Errorf("%w: unknown marker backend %q", ErrInvalidConfig, cfg.Markers.Backend)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but unusual values.
//
// This is called after Validate() in NewPreSplitter() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if len(cfg.Shards) == 1 {
		logger.Warn("only one shard configured, every piece of the day lands on it",
			"shard", cfg.Shards[0])
	}

	seen := make(map[string]struct{}, len(cfg.Shards))
	for _, s := range cfg.Shards {
		if _, dup := seen[s]; dup {
			logger.Warn("shard listed more than once, it receives several pieces of every chunk", "shard", s)
		}
		seen[s] = struct{}{}
	}

	if cfg.Markers.Backend == MarkerBackendMemory {
		logger.Warn("memory markers are lost when the process exits, reruns will redo the work")
	}

	if cfg.OperationTimeout < time.Minute {
		logger.Warn("operationTimeout is short for chunk migrations",
			"timeout", cfg.OperationTimeout,
			"recommended", "10m or higher")
	}
}

// Location returns the time zone day boundaries are computed in.
// An unknown zone falls back to UTC; Validate reports it as an error.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// ParseConfig decodes YAML configuration, applies defaults and validates it.
// Unknown fields are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig reads and parses the YAML configuration file at path.
//
// Example:
//
//	cfg, err := presplit.LoadConfig("/etc/presplit/events.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return cfg, nil
}

// TestConfig returns a valid configuration for tests: namespace
// "test.events", three shards and in-memory markers.
//
// Example:
//
//	cfg := presplit.TestConfig()
//	cfg.Shards = []string{"a", "b"}
//	p, err := presplit.NewPreSplitter(&cfg, bal, marker.NewMemory())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Namespace = "test.events"
	cfg.Shards = []string{"shard-a", "shard-b", "shard-c"}
	cfg.Markers.Backend = MarkerBackendMemory
	cfg.OperationTimeout = 10 * time.Second

	return cfg
}
