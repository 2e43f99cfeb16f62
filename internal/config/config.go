package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the YAML configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Global    GlobalConfig    `yaml:"global"`
	Allowlist AllowlistConfig `yaml:"allowlist"`
	Chains    []ChainConfig   `yaml:"chains"`
	Sources   []Source        `yaml:"sources"`
	Sinks     []Sink          `yaml:"sinks"`
	Mirror    MirrorConfig    `yaml:"mirror"`
}

type GlobalConfig struct {
	OutputDir      string        `yaml:"output_dir"`
	DBPath         string        `yaml:"db_path"`
	LogLevel       string        `yaml:"log_level"`
	AdapterTimeout time.Duration `yaml:"adapter_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	Concurrency    int           `yaml:"concurrency"`
	Prune          bool          `yaml:"prune"`
}

// AllowlistConfig points at the protocol allowlist feed. Exactly one of
// Path and URL is set.
type AllowlistConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// Location returns whichever of Path or URL is configured.
func (a AllowlistConfig) Location() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Path
}

// ChainConfig adds a chain, or extra aliases for a known chain, to the
// built-in registry.
type ChainConfig struct {
	ID      uint64   `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Source struct {
	ID       string        `yaml:"id"`
	Type     string        `yaml:"type"`
	Enabled  *bool         `yaml:"enabled,omitempty"`
	Location string        `yaml:"location"`
	Trust    int           `yaml:"trust"`
	Protocol string        `yaml:"protocol"`
	Files    []string      `yaml:"files"`
	Networks []string      `yaml:"networks"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IsEnabled reports whether the source takes part in runs. Sources are
// enabled unless explicitly switched off.
func (s Source) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

type Sink struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
	On         string `yaml:"on"`
}

type MirrorConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Source types understood by the adapter factory.
const (
	SourceUniswap  = "uniswap"
	SourceBalancer = "balancer"
	SourceManifest = "manifest"
	SourceCurated  = "curated"
)

// Sink triggers.
const (
	NotifyDegraded = "degraded"
	NotifyAlways   = "always"
)

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Defaults returns the values used for settings the file leaves out.
func Defaults() Config {
	return Config{
		Global: GlobalConfig{
			OutputDir:      "./deployments",
			DBPath:         "./catalog.db",
			LogLevel:       "info",
			AdapterTimeout: 60 * time.Second,
			MaxRetries:     2,
			RetryBackoff:   time.Second,
			Concurrency:    4,
			Prune:          true,
		},
	}
}

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// EnabledSources returns the sources that take part in runs, in file order.
func (c *Config) EnabledSources() []Source {
	out := make([]Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global: %w", err)
	}
	if err := c.Allowlist.Validate(); err != nil {
		return fmt.Errorf("allowlist: %w", err)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}

	for i, ch := range c.Chains {
		if ch.ID == 0 {
			return fmt.Errorf("chain %d: id is required", i)
		}
		if ch.Name == "" && len(ch.Aliases) == 0 {
			return fmt.Errorf("chain %d: name or aliases are required", ch.ID)
		}
	}

	sourceIDs := map[string]struct{}{}
	enabled := 0
	for i := range c.Sources {
		s := &c.Sources[i]
		if _, exists := sourceIDs[s.ID]; exists {
			return fmt.Errorf("duplicate source id: %s", s.ID)
		}
		sourceIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", s.ID, err)
		}
		if s.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("at least one enabled source is required")
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	return nil
}

func (g *GlobalConfig) Validate() error {
	if g.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if g.AdapterTimeout <= 0 {
		return errors.New("adapter_timeout must be positive")
	}
	if g.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if g.RetryBackoff < 0 {
		return errors.New("retry_backoff must not be negative")
	}
	if g.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	return nil
}

func (a *AllowlistConfig) Validate() error {
	switch {
	case a.Path == "" && a.URL == "":
		return errors.New("path or url is required")
	case a.Path != "" && a.URL != "":
		return errors.New("set only one of path and url")
	}
	return nil
}

func (s *Source) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Location == "" {
		return errors.New("location is required")
	}
	if s.Trust < 1 {
		return errors.New("trust must be at least 1")
	}
	if s.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	s.Type = strings.ToLower(s.Type)
	switch s.Type {
	case SourceUniswap, SourceBalancer, SourceManifest, SourceCurated:
	default:
		return fmt.Errorf("unsupported source type: %s", s.Type)
	}
	if len(s.Networks) > 0 && s.Type != SourceBalancer {
		return fmt.Errorf("networks is only supported by %s sources", SourceBalancer)
	}
	if len(s.Files) > 0 && s.Type == SourceBalancer {
		return errors.New("balancer sources select networks, not files")
	}
	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}

	switch strings.ToLower(s.On) {
	case "":
		s.On = NotifyDegraded
	case NotifyDegraded, NotifyAlways:
		s.On = strings.ToLower(s.On)
	default:
		return fmt.Errorf("unsupported on value: %s", s.On)
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
