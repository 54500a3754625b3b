package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/teamwatch/schema"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults; environment variables
// prefixed with EnvPrefix override both.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("server.base_url", cfg.Server.BaseURL)
	v.SetDefault("server.request_timeout_seconds", cfg.Server.RequestTimeoutSeconds)
	v.SetDefault("filter.category", cfg.Filter.Category)
	v.SetDefault("filter.agent", cfg.Filter.Agent)
	v.SetDefault("filter.tool", cfg.Filter.Tool)
	v.SetDefault("render.format", cfg.Render.Format)
	v.SetDefault("render.rows", cfg.Render.Rows)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("fixture.addr", cfg.Fixture.Addr)
	v.SetDefault("fixture.interval_ms", cfg.Fixture.IntervalMS)
	v.SetDefault("fixture.seed", cfg.Fixture.Seed)
	v.SetDefault("fixture.drop_every", cfg.Fixture.DropEvery)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func Validate(cfg Config) error {
	if err := validateBaseURL(cfg.Server.BaseURL); err != nil {
		return err
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be positive")
	}
	if _, err := schema.ParseCategory(cfg.Filter.Category); err != nil {
		return fmt.Errorf("filter.category: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Render.Format)) {
	case "", "auto", "color", "plain", "json":
	default:
		return fmt.Errorf("render.format must be one of auto, color, plain, json")
	}
	if cfg.Fixture.IntervalMS <= 0 {
		return fmt.Errorf("fixture.interval_ms must be positive")
	}
	if cfg.Fixture.DropEvery < 0 {
		return fmt.Errorf("fixture.drop_every must not be negative")
	}
	return nil
}

func validateBaseURL(raw string) error {
	baseURL := strings.TrimSpace(raw)
	if baseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("server.base_url must include http(s) scheme and host (e.g. http://127.0.0.1:5111)")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("server.base_url must not include query or fragment")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Server.BaseURL = expandEnv(cfg.Server.BaseURL)
	cfg.Metrics.Addr = expandEnv(cfg.Metrics.Addr)
	cfg.Fixture.Addr = expandEnv(cfg.Fixture.Addr)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "HOSTNAME":
		if name, err := os.Hostname(); err == nil {
			return name, true
		}
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
