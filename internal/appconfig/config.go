package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/teamwatch/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Server        ServerConfig  `mapstructure:"server" yaml:"server"`
	Filter        FilterConfig  `mapstructure:"filter" yaml:"filter"`
	Render        RenderConfig  `mapstructure:"render" yaml:"render"`
	Metrics       MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Fixture       FixtureConfig `mapstructure:"fixture" yaml:"fixture"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EnvPrefix prefixes environment overrides, e.g. TEAMWATCH_SERVER_BASE_URL.
const EnvPrefix = "TEAMWATCH"

// ServerConfig points the dashboard at a backend.
type ServerConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// FilterConfig is the filter applied at startup.
type FilterConfig struct {
	Category string `mapstructure:"category" yaml:"category"`
	Agent    string `mapstructure:"agent" yaml:"agent"`
	Tool     string `mapstructure:"tool" yaml:"tool"`
}

// RenderConfig controls presentation.
type RenderConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Rows   int    `mapstructure:"rows" yaml:"rows"`
}

// MetricsConfig controls the Prometheus endpoint; an empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// FixtureConfig configures the synthetic backend.
type FixtureConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	IntervalMS int    `mapstructure:"interval_ms" yaml:"interval_ms"`
	Seed       int64  `mapstructure:"seed" yaml:"seed"`
	DropEvery  int    `mapstructure:"drop_every" yaml:"drop_every"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Server: ServerConfig{
			BaseURL:               "http://127.0.0.1:5111",
			RequestTimeoutSeconds: 10,
		},
		Filter: FilterConfig{},
		Render: RenderConfig{
			Format: "auto",
			Rows:   20,
		},
		Metrics: MetricsConfig{},
		Fixture: FixtureConfig{
			Addr:       "127.0.0.1:5111",
			IntervalMS: 1500,
			Seed:       1,
			DropEvery:  0,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".teamwatch", "config.yaml"), nil
}

// FilterState returns the startup filter, validated.
func (c Config) FilterState() (schema.FilterState, error) {
	return schema.NormalizeFilter(schema.FilterState{
		Category:  schema.Category(c.Filter.Category),
		AgentName: c.Filter.Agent,
		ToolName:  c.Filter.Tool,
	})
}

// RequestTimeout is the pull request timeout.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Interval is the delay between synthetic events.
func (c FixtureConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
