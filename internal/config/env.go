package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables overriding file configuration. The names match the
// variables deployments already set for the content checkout and site identity.
const (
	EnvGitURL          = "GIT_URL"
	EnvGitBranch       = "GIT_BRANCH"
	EnvSiteName        = "SITENAME"
	EnvTimezoneDefault = "TIMEZONE_DEFAULT"
	EnvStore           = "MOKLOG_STORE"
	EnvNATSURL         = "MOKLOG_NATS_URL"
)

// loadEnvFiles loads KEY=VALUE files into the process environment.
// Missing files are ignored and existing variables are never overwritten.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", "path", p, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", p)
	}
}

func applyEnvOverrides(cfg *Config) {
	override := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(EnvGitURL, &cfg.Source.URL)
	override(EnvGitBranch, &cfg.Source.Branch)
	override(EnvSiteName, &cfg.Site.Name)
	override(EnvTimezoneDefault, &cfg.Site.Timezone)
	override(EnvStore, &cfg.Store.Path)
	override(EnvNATSURL, &cfg.Notify.NATSURL)
}
