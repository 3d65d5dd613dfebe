// Package config loads the service settings from defaults, an optional
// config file, WEBAPI_ environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "WEBAPI"

type Config struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Resources ResourcesConfig `mapstructure:"resources"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Log       LogConfig       `mapstructure:"log"`
	Otel      OtelConfig      `mapstructure:"otel"`
}

type ResourcesConfig struct {
	Root    string `mapstructure:"root"`
	Index   string `mapstructure:"index"`
	Missing string `mapstructure:"missing"`
}

type StreamConfig struct {
	ChunkSize  int `mapstructure:"chunk_size"`
	// MaxStreams bounds the resources streamed at the same time.
	MaxStreams int `mapstructure:"max_streams"`
}

type PipelineConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type WorkersConfig struct {
	Count int `mapstructure:"count"`
	Queue int `mapstructure:"queue"`
}

type UpstreamConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OtelConfig enables OTLP export when Endpoint is set.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:1337",
		ShutdownTimeout: 10 * time.Second,
		Resources: ResourcesConfig{
			Root:    "static",
			Index:   "index.html",
			Missing: "no_file.html",
		},
		Stream:   StreamConfig{ChunkSize: 16, MaxStreams: 256},
		Pipeline: PipelineConfig{Capacity: 1},
		Workers:  WorkersConfig{Count: 8, Queue: 1024},
		Upstream: UpstreamConfig{
			URL:     "http://127.0.0.1:1337/web_api",
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Otel: OtelConfig{
			Insecure:    true,
			ServiceName: "webapi",
		},
	}
}

// Load reads the configuration. path may be empty, in which case no config
// file is read. flags may be nil; set flags override every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Workers.Queue = NextPowerOfTwo(cfg.Workers.Queue)

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("resources.root", d.Resources.Root)
	v.SetDefault("resources.index", d.Resources.Index)
	v.SetDefault("resources.missing", d.Resources.Missing)
	v.SetDefault("stream.chunk_size", d.Stream.ChunkSize)
	v.SetDefault("stream.max_streams", d.Stream.MaxStreams)
	v.SetDefault("pipeline.capacity", d.Pipeline.Capacity)
	v.SetDefault("workers.count", d.Workers.Count)
	v.SetDefault("workers.queue", d.Workers.Queue)
	v.SetDefault("upstream.enabled", d.Upstream.Enabled)
	v.SetDefault("upstream.url", d.Upstream.URL)
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("otel.endpoint", d.Otel.Endpoint)
	v.SetDefault("otel.insecure", d.Otel.Insecure)
	v.SetDefault("otel.service_name", d.Otel.ServiceName)
}

// bindFlags binds every flag whose name is a config key. Flags the command
// does not define are simply not bound.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range v.AllKeys() {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: binding flag %s: %w", key, err)
		}
	}
	return nil
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: invalid " + e.Field + ": " + e.Message
}

func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, &ConfigError{Field: "addr", Message: "must not be empty"})
	}
	if c.Stream.ChunkSize < 0 {
		errs = append(errs, &ConfigError{Field: "stream.chunk_size", Message: "must not be negative"})
	}
	if c.Stream.MaxStreams < 1 {
		errs = append(errs, &ConfigError{Field: "stream.max_streams", Message: "must be at least 1"})
	}
	if c.Pipeline.Capacity < 1 {
		errs = append(errs, &ConfigError{Field: "pipeline.capacity", Message: "must be at least 1"})
	}
	if c.Workers.Count < 1 {
		errs = append(errs, &ConfigError{Field: "workers.count", Message: "must be at least 1"})
	}
	if c.Workers.Queue < 1 {
		errs = append(errs, &ConfigError{Field: "workers.queue", Message: "must be at least 1"})
	}
	if c.Upstream.Enabled && c.Upstream.URL == "" {
		errs = append(errs, &ConfigError{Field: "upstream.url", Message: "required when upstream is enabled"})
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, &ConfigError{Field: "shutdown_timeout", Message: "must not be negative"})
	}

	return errors.Join(errs...)
}

// NextPowerOfTwo rounds n up to a power of two.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
