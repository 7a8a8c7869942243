package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateSite,
		c.validatePaths,
		c.validateBuild,
		c.validateSource,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSite() error {
	if _, err := language.Parse(c.Site.DefaultLanguage); err != nil {
		return invalid("site.default_language", c.Site.DefaultLanguage, err)
	}
	if c.Site.BaseURL != "" {
		u, err := url.Parse(c.Site.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("site.base_url", c.Site.BaseURL, err)
		}
	}
	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			return invalid("site.timezone", c.Site.Timezone, err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Content.Dir == c.Output.Dir {
		return invalid("output.dir", c.Output.Dir, fmt.Errorf("must differ from content.dir"))
	}
	if !strings.HasPrefix(c.Output.AssetPrefix, "/") || !strings.HasSuffix(c.Output.AssetPrefix, "/") {
		return invalid("output.asset_prefix", c.Output.AssetPrefix, fmt.Errorf("must start and end with '/'"))
	}
	for _, name := range c.Content.IgnoreFiles {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return invalid("content.ignore_files", name, fmt.Errorf("must be a plain file name"))
		}
	}
	return nil
}

func (c *Config) validateBuild() error {
	if c.Build.Workers <= 0 {
		return invalid("build.workers", fmt.Sprint(c.Build.Workers), fmt.Errorf("must be positive"))
	}
	if _, err := time.ParseDuration(c.Build.Debounce); err != nil {
		return invalid("build.debounce", c.Build.Debounce, err)
	}
	return nil
}

func (c *Config) validateSource() error {
	if _, err := time.ParseDuration(c.Source.Interval); err != nil {
		return invalid("source.interval", c.Source.Interval, err)
	}
	if NormalizeRetryBackoff(string(c.Source.Retry.Mode)) == "" {
		return invalid("source.retry.mode", string(c.Source.Retry.Mode), fmt.Errorf("expected fixed, linear or exponential"))
	}
	if c.Source.Retry.MaxRetries < 0 {
		return invalid("source.retry.max_retries", fmt.Sprint(c.Source.Retry.MaxRetries), fmt.Errorf("cannot be negative"))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level", c.Logging.Level, nil)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return invalid("logging.format", c.Logging.Format, nil)
	}
	return nil
}

func invalid(field, value string, cause error) error {
	b := errors.NewError(errors.CategoryConfig, "invalid configuration value").
		Fatal().
		WithRetry(errors.RetryUserAction).
		WithContext("field", field).
		WithContext("value", value)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}
