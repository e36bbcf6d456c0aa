// Package config loads the YAML configuration shared by the nestprof
// commands.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/memory"
)

// ProfilerConfig mirrors nestprof.Config.
type ProfilerConfig struct {
	Indent         int  `yaml:"indent"`
	IndentNumbers  bool `yaml:"indent_numbers"`
	MaxDepth       int  `yaml:"max_depth"`
	MemorySampling bool `yaml:"memory_sampling"`
}

// DashboardConfig is the block for the HTTP dashboard. Omit it to disable
// the dashboard.
type DashboardConfig struct {
	Address    string `yaml:"addr"`
	MaxClients int    `yaml:"max_clients"`
}

// StatsdConfig is the block for statsd export.
type StatsdConfig struct {
	Address    string  `yaml:"addr"`
	Prefix     string  `yaml:"prefix"`
	SampleRate float64 `yaml:"sample_rate"`
}

// CSVConfig is the block for CSV export.
type CSVConfig struct {
	Path string `yaml:"path"`
}

// Config describes all command configuration options.
type Config struct {
	Profiler  ProfilerConfig   `yaml:"profiler"`
	Dashboard *DashboardConfig `yaml:"dashboard"`
	Statsd    *StatsdConfig    `yaml:"statsd"`
	CSV       *CSVConfig       `yaml:"csv"`
	SentryDSN string           `yaml:"sentry_dsn"`
	LogLevel  string           `yaml:"log_level"`
}

// Default returns the configuration used when no file is given. Fields a
// file leaves out keep these values.
func Default() *Config {
	return &Config{
		Profiler: ProfilerConfig{
			Indent:        1,
			IndentNumbers: true,
			MaxDepth:      nestprof.DefaultMaxDepth,
		},
		LogLevel: "info",
	}
}

// Load parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: error reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate the contents of the configuration.
func (c *Config) validate() error {
	/* Profiler */

	if c.Profiler.Indent < 0 {
		return fmt.Errorf("config: profiler indent must not be negative: indent=%d", c.Profiler.Indent)
	}

	/* Dashboard */

	if c.Dashboard != nil {
		if c.Dashboard.Address == "" {
			return fmt.Errorf("config: missing dashboard address")
		}
		if c.Dashboard.MaxClients < 0 {
			return fmt.Errorf("config: dashboard max_clients must not be negative")
		}
	}

	/* Exporters */

	// Users can omit the statsd block entirely to disable metrics reporting.
	if c.Statsd != nil {
		if c.Statsd.Address == "" {
			return fmt.Errorf("config: missing statsd address")
		}
		if c.Statsd.SampleRate < 0 || c.Statsd.SampleRate > 1 {
			return fmt.Errorf("config: statsd sample rate must be in range [0.0, 1.0]")
		}
	}

	if c.CSV != nil && c.CSV.Path == "" {
		return fmt.Errorf("config: missing csv path")
	}

	/* Logging */

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level returns the configured zerolog level. An empty level means info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: unknown log level: level=%s", c.LogLevel)
	}
	return level, nil
}

// NestprofConfig builds the profiler configuration. Memory sampling is on
// when either the file or the environment toggle asks for it.
func (c *Config) NestprofConfig() *nestprof.Config {
	cfg := nestprof.DefaultConfig()
	cfg.Indent = c.Profiler.Indent
	cfg.IndentNumbers = c.Profiler.IndentNumbers
	cfg.MaxDepth = c.Profiler.MaxDepth
	if c.Profiler.MemorySampling && cfg.Memory == nil {
		cfg.Memory = memory.System()
	}
	return cfg
}
