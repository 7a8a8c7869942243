package config

import (
	"runtime"
	"time"
)

// Defaults for fields left empty by the configuration file.
const (
	DefaultContentDir  = "content"
	DefaultThemeDir    = "theme"
	DefaultOutputDir   = "public"
	DefaultAssetPrefix = "/static/"
	DefaultLanguage    = "en"
	DefaultSubject     = "moklog.build.committed"
	DefaultSourceDir   = "content"
	DefaultBranch      = "main"
	DefaultDebounce    = 500 * time.Millisecond
	DefaultInterval    = 5 * time.Minute
)

// DefaultIgnoreFiles are the per-directory exclusion files honored by the tree walk.
var DefaultIgnoreFiles = []string{".ignore", ".mkignore", ".pengignore"}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Site.DefaultLanguage == "" {
		cfg.Site.DefaultLanguage = DefaultLanguage
	}
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = DefaultContentDir
	}
	if len(cfg.Content.IgnoreFiles) == 0 {
		cfg.Content.IgnoreFiles = append([]string(nil), DefaultIgnoreFiles...)
	}
	if cfg.Theme.Dir == "" {
		cfg.Theme.Dir = DefaultThemeDir
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.AssetPrefix == "" {
		cfg.Output.AssetPrefix = DefaultAssetPrefix
	}
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Build.Debounce == "" {
		cfg.Build.Debounce = DefaultDebounce.String()
	}
	if cfg.Source.URL != "" {
		if cfg.Source.Branch == "" {
			cfg.Source.Branch = DefaultBranch
		}
		if cfg.Source.Dir == "" {
			cfg.Source.Dir = DefaultSourceDir
		}
	}
	if cfg.Source.Interval == "" {
		cfg.Source.Interval = DefaultInterval.String()
	}
	if cfg.Source.Retry.Mode == "" {
		cfg.Source.Retry.Mode = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cfg.Source.Retry.Mode)); m != "" {
		cfg.Source.Retry.Mode = m
	}
	if cfg.Source.Retry.Initial == "" {
		cfg.Source.Retry.Initial = "1s"
	}
	if cfg.Source.Retry.Max == "" {
		cfg.Source.Retry.Max = "30s"
	}
	if cfg.Source.Retry.MaxRetries == 0 {
		cfg.Source.Retry.MaxRetries = 2
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultSubject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
