// Package config loads and validates search configuration.
//
// Values come from three layers, lowest precedence first: built-in defaults,
// an optional YAML file, and command-line flags. The layers are merged with
// viper; flags are bound by key through BindFlags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

const (
	MinChunkSize = 1_000
	MaxChunkSize = 100_000_000

	DefaultLimit              = 1_000_000_000
	DefaultChunkSize          = 500_000
	DefaultCheckpointInterval = 5 * time.Second
)

type Config struct {
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Files   FilesConfig   `yaml:"files" mapstructure:"files"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Mirror  MirrorConfig  `yaml:"mirror" mapstructure:"mirror"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
}

type SearchConfig struct {
	Start              uint64        `yaml:"start" mapstructure:"start"`
	Limit              uint64        `yaml:"limit" mapstructure:"limit"`
	ChunkSize          uint64        `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers            int           `yaml:"workers" mapstructure:"workers"` // 0 means one per CPU
	Fresh              bool          `yaml:"fresh" mapstructure:"fresh"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
}

// WorkerCount resolves the configured worker count.
func (s SearchConfig) WorkerCount() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

type FilesConfig struct {
	StateFile  string `yaml:"state_file" mapstructure:"state_file"`
	OutputFile string `yaml:"output_file" mapstructure:"output_file"`
}

type LogConfig struct {
	Format    string `yaml:"format" mapstructure:"format"` // text | json
	Level     string `yaml:"level" mapstructure:"level"`   // empty derives from verbosity
	Verbosity int    `yaml:"verbosity" mapstructure:"verbosity"`
	Quiet     bool   `yaml:"quiet" mapstructure:"quiet"`
}

type MetricsConfig struct {
	Address string `yaml:"address" mapstructure:"address"` // empty disables the endpoint
}

type MirrorConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Compress bool   `yaml:"compress" mapstructure:"compress"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Search: SearchConfig{
			Start:              1,
			Limit:              DefaultLimit,
			ChunkSize:          DefaultChunkSize,
			CheckpointInterval: DefaultCheckpointInterval,
		},
		Files: FilesConfig{
			StateFile:  "state.json",
			OutputFile: "found.txt",
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Validate checks every value against its allowed range.
func (c Config) Validate() error {
	s := c.Search
	if s.Start < 1 {
		return fmt.Errorf("%w: start must be at least 1", ErrInvalid)
	}
	if s.Start >= s.Limit {
		return fmt.Errorf("%w: start (%d) must be less than limit (%d)", ErrInvalid, s.Start, s.Limit)
	}
	if s.ChunkSize < MinChunkSize {
		return fmt.Errorf("%w: chunk size must be at least %d", ErrInvalid, MinChunkSize)
	}
	if s.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size must not exceed %d", ErrInvalid, MaxChunkSize)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if s.CheckpointInterval <= 0 {
		return fmt.Errorf("%w: checkpoint interval must be positive", ErrInvalid)
	}

	f := c.Files
	if f.StateFile == "" {
		return fmt.Errorf("%w: state file required", ErrInvalid)
	}
	if f.OutputFile == "" {
		return fmt.Errorf("%w: output file required", ErrInvalid)
	}
	if f.StateFile == f.OutputFile {
		return fmt.Errorf("%w: state file and output file must differ", ErrInvalid)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalid, c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("%w: verbosity must not be negative", ErrInvalid)
	}

	return nil
}

// SetDefaults registers Defaults() with v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("search.start", d.Search.Start)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.chunk_size", d.Search.ChunkSize)
	v.SetDefault("search.workers", d.Search.Workers)
	v.SetDefault("search.fresh", d.Search.Fresh)
	v.SetDefault("search.checkpoint_interval", d.Search.CheckpointInterval)
	v.SetDefault("files.state_file", d.Files.StateFile)
	v.SetDefault("files.output_file", d.Files.OutputFile)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.verbosity", d.Log.Verbosity)
	v.SetDefault("log.quiet", d.Log.Quiet)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("mirror.url", d.Mirror.URL)
	v.SetDefault("mirror.prefix", d.Mirror.Prefix)
	v.SetDefault("mirror.compress", d.Mirror.Compress)
	v.SetDefault("catalog.postgres_dsn", d.Catalog.PostgresDSN)
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"start":               "search.start",
	"limit":               "search.limit",
	"chunk-size":          "search.chunk_size",
	"workers":             "search.workers",
	"fresh":               "search.fresh",
	"checkpoint-interval": "search.checkpoint_interval",
	"state-file":          "files.state_file",
	"output-file":         "files.output_file",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"verbose":             "log.verbosity",
	"quiet":               "log.quiet",
	"metrics-addr":        "metrics.address",
	"mirror-url":          "mirror.url",
	"mirror-prefix":       "mirror.prefix",
	"mirror-compress":     "mirror.compress",
	"catalog-dsn":         "catalog.postgres_dsn",
}

// BindFlags binds every flag in fs listed in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load merges defaults, the YAML file at path (if non-empty) and any flags
// already bound to v, then validates the result.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config file %s: %v", ErrInvalid, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode config: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes Defaults() as YAML to path. An existing file is
// never overwritten.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
