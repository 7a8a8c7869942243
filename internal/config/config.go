package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // site timezones must resolve in minimal containers

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// CurrentVersion is the only configuration file version understood by Load.
const CurrentVersion = "1"

// Config is the complete moklog configuration.
type Config struct {
	Version string        `yaml:"version"`
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Theme   ThemeConfig   `yaml:"theme"`
	Output  OutputConfig  `yaml:"output"`
	Store   StoreConfig   `yaml:"store"`
	Build   BuildConfig   `yaml:"build"`
	Source  SourceConfig  `yaml:"source"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig holds site-wide metadata exposed to templates.
type SiteConfig struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	Description     string `yaml:"description"`
	Author          string `yaml:"author"`
	DefaultLanguage string `yaml:"default_language"` // BCP-47 tag of untranslated documents
	RSS             bool   `yaml:"rss"`              // emit Atom feeds for rss-enabled documents
	Timezone        string `yaml:"timezone"`         // IANA zone used for dates without offset
}

// ContentConfig describes the content root and its namespace rules.
type ContentConfig struct {
	Dir           string   `yaml:"dir"`
	IgnoreFiles   []string `yaml:"ignore_files"`   // per-directory exclusion files (gitignore syntax)
	ReservedNames []string `yaml:"reserved_names"` // extra names appended to the built-in reserved set
}

// ThemeConfig locates the theme bundle.
type ThemeConfig struct {
	Dir string `yaml:"dir"`
}

// OutputConfig controls where and how the site is published.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	AssetPrefix string `yaml:"asset_prefix"` // URL prefix of content-addressed assets
	Clean       bool   `yaml:"clean"`        // remove files of artifacts dropped by the diff
}

// StoreConfig selects the artifact store. An empty path keeps state in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BuildConfig tunes the build session.
type BuildConfig struct {
	Workers  int    `yaml:"workers"`  // render/asset worker pool size
	Debounce string `yaml:"debounce"` // quiet period before a watch-triggered rebuild
}

// SourceConfig describes the git remote content is pulled from.
type SourceConfig struct {
	URL      string      `yaml:"url"`
	Branch   string      `yaml:"branch"`
	Dir      string      `yaml:"dir"`
	Interval string      `yaml:"interval"` // daemon pull interval
	Retry    RetryConfig `yaml:"retry"`
}

// RetryConfig configures backoff for transient pull/notify failures.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    string           `yaml:"initial"`
	Max        string           `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// NotifyConfig configures the build-committed notification.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the Prometheus endpoint of the daemon.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Load reads a configuration file. An empty path yields the defaults.
// .env files are loaded first and environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(".env", ".env.local")

	cfg := &Config{Version: CurrentVersion}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.ConfigError("failed to read config file").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.ConfigError("failed to parse config file").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		if cfg.Version == "" {
			cfg.Version = CurrentVersion
		}
		if cfg.Version != CurrentVersion {
			return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).
				WithContext("path", configPath).
				Build()
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := &Config{Version: CurrentVersion}
	applyDefaults(example)
	example.Site.Name = "My site"
	example.Site.BaseURL = "https://example.org"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// DebounceDuration returns the parsed watch debounce.
func (c *Config) DebounceDuration() time.Duration {
	return parseDurationOr(c.Build.Debounce, DefaultDebounce)
}

// IntervalDuration returns the parsed daemon pull interval.
func (c *Config) IntervalDuration() time.Duration {
	return parseDurationOr(c.Source.Interval, DefaultInterval)
}

// Location returns the configured site timezone, or UTC.
func (c *Config) Location() *time.Location {
	if c.Site.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
