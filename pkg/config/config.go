// Package config loads the server configuration from a YAML file with
// IDXDB_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/adfharrison1/idxdb/pkg/logger"
)

// Config is the top-level configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Reaper  ReaperConfig  `yaml:"reaper"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. RequestTimeout bounds the context
// of every request; 0 leaves requests unbounded, so long index builds are only
// cancelled by the client.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig controls snapshots and index builds.
type StorageConfig struct {
	// DataFile is the snapshot file; empty keeps everything in memory only.
	DataFile         string        `yaml:"dataFile"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	BuildBatchSize   int           `yaml:"buildBatchSize"`
}

// ReaperConfig controls the TTL reaper.
type ReaperConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			RequestTimeout:  0,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			DataFile:         "data/idxdb.idxb",
			SnapshotInterval: 5 * time.Minute,
			BuildBatchSize:   256,
		},
		Reaper: ReaperConfig{
			Enabled:  true,
			Interval: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a YAML config file, if path is set, over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}
	if c.Storage.BuildBatchSize <= 0 {
		return fmt.Errorf("storage.buildBatchSize must be positive")
	}
	if c.Storage.SnapshotInterval < 0 {
		return fmt.Errorf("storage.snapshotInterval cannot be negative")
	}
	if c.Reaper.Enabled && c.Reaper.Interval <= 0 {
		return fmt.Errorf("reaper.interval must be positive")
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

type override struct {
	env   string
	apply func(v string) error
}

// applyEnvOverrides reads IDXDB_* variables over the file values.
func applyEnvOverrides(cfg *Config) error {
	overrides := []override{
		{"IDXDB_SERVER_PORT", intVar(&cfg.Server.Port)},
		{"IDXDB_SERVER_SHUTDOWN_TIMEOUT", durationVar(&cfg.Server.ShutdownTimeout)},
		{"IDXDB_SERVER_REQUEST_TIMEOUT", durationVar(&cfg.Server.RequestTimeout)},
		{"IDXDB_STORAGE_DATA_FILE", stringVar(&cfg.Storage.DataFile)},
		{"IDXDB_STORAGE_SNAPSHOT_INTERVAL", durationVar(&cfg.Storage.SnapshotInterval)},
		{"IDXDB_STORAGE_BUILD_BATCH_SIZE", intVar(&cfg.Storage.BuildBatchSize)},
		{"IDXDB_REAPER_ENABLED", boolVar(&cfg.Reaper.Enabled)},
		{"IDXDB_REAPER_INTERVAL", durationVar(&cfg.Reaper.Interval)},
		{"IDXDB_LOGGING_LEVEL", stringVar(&cfg.Logging.Level)},
		{"IDXDB_LOGGING_FORMAT", stringVar(&cfg.Logging.Format)},
		{"IDXDB_METRICS_ENABLED", boolVar(&cfg.Metrics.Enabled)},
	}
	for _, o := range overrides {
		v, ok := os.LookupEnv(o.env)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(v); err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
	}
	return nil
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
