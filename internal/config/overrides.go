package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override global settings.
const EnvPrefix = "CATALOG"

// Override keys, shared by flag names and CATALOG_* variables
// (CATALOG_OUTPUT_DIR, CATALOG_LOG_LEVEL, ...).
const (
	KeyOutputDir      = "output-dir"
	KeyDBPath         = "db-path"
	KeyLogLevel       = "log-level"
	KeyConcurrency    = "concurrency"
	KeyAdapterTimeout = "adapter-timeout"
	KeyMaxRetries     = "max-retries"
	KeyPrune          = "prune"
)

// ApplyOverrides merges explicitly set flags and CATALOG_* environment
// variables over the file's global section, then re-validates it.
func ApplyOverrides(cfg *Config, flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	g := &cfg.Global
	if v.IsSet(KeyOutputDir) {
		g.OutputDir = v.GetString(KeyOutputDir)
	}
	if v.IsSet(KeyDBPath) {
		g.DBPath = v.GetString(KeyDBPath)
	}
	if v.IsSet(KeyLogLevel) {
		g.LogLevel = v.GetString(KeyLogLevel)
	}
	if v.IsSet(KeyConcurrency) {
		g.Concurrency = v.GetInt(KeyConcurrency)
	}
	if v.IsSet(KeyAdapterTimeout) {
		g.AdapterTimeout = v.GetDuration(KeyAdapterTimeout)
	}
	if v.IsSet(KeyMaxRetries) {
		g.MaxRetries = v.GetInt(KeyMaxRetries)
	}
	if v.IsSet(KeyPrune) {
		g.Prune = v.GetBool(KeyPrune)
	}

	if err := g.Validate(); err != nil {
		return fmt.Errorf("global overrides: %w", err)
	}
	return nil
}
