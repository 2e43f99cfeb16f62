package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const sampleYAML = `
version: 1
global:
  output_dir: ./out
  adapter_timeout: 30s
  concurrency: 2
allowlist:
  path: ./protocols.yaml
chains:
  - id: 424242
    name: devnet
    aliases: [local-devnet]
sources:
  - id: uniswap-official
    type: Uniswap
    location: ./src/uniswap/deployments
    trust: 3
  - id: balancer-repo
    type: balancer
    location: ./src/balancer
    networks: [mainnet, optimism]
    trust: 3
    enabled: false
sinks:
  - id: ops
    type: slack
    webhook_url: ${SLACK_HOOK}
mirror:
  postgres_dsn: ${CATALOG_PG_DSN}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadInterpolatesEnvAndValidates(t *testing.T) {
	cfgPath := writeConfig(t, sampleYAML)
	t.Setenv("SLACK_HOOK", "https://hooks.slack.test")
	t.Setenv("CATALOG_PG_DSN", "postgres://catalog@localhost/catalog")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}

	if got := cfg.Sinks[0].WebhookURL; got != "https://hooks.slack.test" {
		t.Fatalf("webhook_url not interpolated, got %q", got)
	}
	if got := cfg.Sinks[0].On; got != NotifyDegraded {
		t.Fatalf("sink trigger should default to degraded, got %q", got)
	}
	if cfg.Global.AdapterTimeout != 30*time.Second || cfg.Global.Concurrency != 2 {
		t.Fatalf("global not parsed: %+v", cfg.Global)
	}
	if cfg.Global.MaxRetries != 2 || !cfg.Global.Prune || cfg.Global.DBPath != "./catalog.db" {
		t.Fatalf("defaults not applied: %+v", cfg.Global)
	}
	if cfg.Sources[0].Type != SourceUniswap {
		t.Fatalf("source type not normalized: %q", cfg.Sources[0].Type)
	}
	if nets := cfg.Sources[1].Networks; len(nets) != 2 || nets[1] != "optimism" {
		t.Fatalf("balancer networks = %v", nets)
	}
	if enabled := cfg.EnabledSources(); len(enabled) != 1 || enabled[0].ID != "uniswap-official" {
		t.Fatalf("enabled sources = %+v", enabled)
	}
	if cfg.Allowlist.Location() != "./protocols.yaml" {
		t.Fatalf("allowlist location = %q", cfg.Allowlist.Location())
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	cfgPath := writeConfig(t, sampleYAML)
	env := "SLACK_HOOK=https://hooks.from.dotenv\nCATALOG_PG_DSN=postgres://x\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(cfgPath), ".env"), []byte(env), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("SLACK_HOOK")
		os.Unsetenv("CATALOG_PG_DSN")
	})

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sinks[0].WebhookURL != "https://hooks.from.dotenv" {
		t.Fatalf("dotenv not applied: %q", cfg.Sinks[0].WebhookURL)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	cfgPath := writeConfig(t, sampleYAML)
	os.Unsetenv("SLACK_HOOK")
	os.Unsetenv("CATALOG_PG_DSN")

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatalf("expected missing env to fail")
	}
	if !strings.Contains(err.Error(), "SLACK_HOOK") {
		t.Fatalf("error should name the variable: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Version = 1
		cfg.Allowlist.Path = "protocols.yaml"
		cfg.Sources = []Source{{ID: "a", Type: "curated", Location: "curated.yaml", Trust: 1}}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing version", func(c *Config) { c.Version = 0 }},
		{"no allowlist", func(c *Config) { c.Allowlist = AllowlistConfig{} }},
		{"both allowlist forms", func(c *Config) { c.Allowlist.URL = "https://x/protocols.yaml" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"duplicate source", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }},
		{"unknown type", func(c *Config) { c.Sources[0].Type = "graphql" }},
		{"zero trust", func(c *Config) { c.Sources[0].Trust = 0 }},
		{"no location", func(c *Config) { c.Sources[0].Location = "" }},
		{"all disabled", func(c *Config) { off := false; c.Sources[0].Enabled = &off }},
		{"networks on curated", func(c *Config) { c.Sources[0].Networks = []string{"mainnet"} }},
		{"files on balancer", func(c *Config) {
			c.Sources[0].Type, c.Sources[0].Files = "balancer", []string{"mainnet.json"}
		}},
		{"zero concurrency", func(c *Config) { c.Global.Concurrency = 0 }},
		{"chain without id", func(c *Config) { c.Chains = []ChainConfig{{Name: "x"}} }},
		{"bad sink trigger", func(c *Config) {
			c.Sinks = []Sink{{ID: "s", Type: "webhook", URL: "http://x", On: "sometimes"}}
		}},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("baseline config should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyOverridesFromFlagsAndEnv(t *testing.T) {
	cfg := Defaults()

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String(KeyOutputDir, "", "")
	flags.String(KeyLogLevel, "info", "")
	flags.Int(KeyConcurrency, 4, "")
	if err := flags.Parse([]string{"--output-dir", "/tmp/catalog"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	t.Setenv("CATALOG_MAX_RETRIES", "5")

	if err := ApplyOverrides(&cfg, flags); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Global.OutputDir != "/tmp/catalog" {
		t.Fatalf("flag override missing: %q", cfg.Global.OutputDir)
	}
	if cfg.Global.MaxRetries != 5 {
		t.Fatalf("env override missing: %d", cfg.Global.MaxRetries)
	}
	if cfg.Global.Concurrency != 4 || cfg.Global.LogLevel != "info" {
		t.Fatalf("unset flags must not override: %+v", cfg.Global)
	}

	t.Setenv("CATALOG_CONCURRENCY", "0")
	if err := ApplyOverrides(&cfg, nil); err == nil {
		t.Fatalf("expected invalid override to fail validation")
	}
}
