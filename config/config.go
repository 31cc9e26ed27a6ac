// Package config loads forge.yaml files. A forge.yaml configures the
// generator invocation, retry schedule, expand loop caps, state root, audit
// mirror, logging, and tracing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/generator"
	"github.com/zero-day-ai/exercise-forge/loop"
	"github.com/zero-day-ai/exercise-forge/retry"
)

// File names searched by Load when given a directory, in order.
var fileNames = []string{"forge.yaml", "forge.yml"}

// ErrNotFound is returned by Load when a directory holds no forge.yaml.
var ErrNotFound = errors.New("no forge.yaml or forge.yml found")

// DefaultStateRoot is the state root used when none is configured.
const DefaultStateRoot = ".forge-state"

// Config represents a forge.yaml file.
type Config struct {
	// StateRoot holds the audit log and generator artifacts.
	StateRoot string `yaml:"state_root,omitempty"`

	Generator *GeneratorConfig `yaml:"generator,omitempty"`
	Retry     *RetryConfig     `yaml:"retry,omitempty"`

	// Loops overrides expand loop caps per loop kind ("starter", "test",
	// "lesson"). Kinds and tiers left out keep their defaults.
	Loops map[string]loop.TierCaps `yaml:"loops,omitempty"`

	Audit     *AuditConfig     `yaml:"audit,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// GeneratorConfig configures the codex CLI.
type GeneratorConfig struct {
	Executable     string   `yaml:"executable,omitempty"`
	Model          string   `yaml:"model,omitempty"`
	Profile        string   `yaml:"profile,omitempty"`
	SandboxMode    string   `yaml:"sandbox_mode,omitempty"`
	ApprovalPolicy string   `yaml:"approval_policy,omitempty"`
	AddDirs        []string `yaml:"add_dirs,omitempty"`

	// ConfigOverrides are passed as -c key=value.
	ConfigOverrides []string `yaml:"config_overrides,omitempty"`

	// Timeout bounds one generator call.
	// Format: Go duration string (e.g., "10m")
	// Default: 10m
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout parses the timeout string. Returns the default if unset or invalid.
func (g *GeneratorConfig) GetTimeout() time.Duration {
	if g == nil || g.Timeout == "" {
		return generator.DefaultTimeout
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return generator.DefaultTimeout
	}
	return d
}

// CodexOptions converts the section into generator options.
func (g *GeneratorConfig) CodexOptions() generator.CodexOptions {
	opts := generator.CodexOptions{Timeout: g.GetTimeout()}
	if g == nil {
		return opts
	}
	opts.Executable = g.Executable
	opts.Model = g.Model
	opts.Profile = g.Profile
	opts.SandboxMode = g.SandboxMode
	opts.ApprovalPolicy = g.ApprovalPolicy
	opts.AddDirs = append([]string(nil), g.AddDirs...)
	opts.ConfigOverrides = append([]string(nil), g.ConfigOverrides...)
	return opts
}

// RetryConfig configures the stage retry schedule.
type RetryConfig struct {
	// MaxAttempts includes the first call. Default: 3
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// BaseDelay is the wait before the first retry.
	// Format: Go duration string (e.g., "500ms")
	// Default: 500ms
	BaseDelay string `yaml:"base_delay,omitempty"`

	// BackoffMultiplier scales each later delay. Default: 2
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"`
}

// ToRetry converts the section into a retry.Config, filling unset fields
// from retry.Default.
func (r *RetryConfig) ToRetry() (retry.Config, error) {
	cfg := retry.Default()
	if r == nil {
		return cfg, nil
	}
	if r.MaxAttempts != 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay != "" {
		d, err := time.ParseDuration(r.BaseDelay)
		if err != nil {
			return cfg, fmt.Errorf("retry.base_delay: %w", err)
		}
		cfg.BaseDelay = d
	}
	if r.BackoffMultiplier != 0 {
		cfg.BackoffMultiplier = r.BackoffMultiplier
	}
	return cfg, nil
}

// AuditConfig configures rejection auditing beyond the JSONL file.
type AuditConfig struct {
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the optional Redis audit mirror.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Key     string `yaml:"key,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	MaxLen  int64  `yaml:"max_len,omitempty"`
}

// RedisOptions returns mirror options, or false when no mirror is configured.
func (a *AuditConfig) RedisOptions() (audit.RedisOptions, bool) {
	if a == nil || a.Redis == nil || a.Redis.URL == "" {
		return audit.RedisOptions{}, false
	}
	return audit.RedisOptions{
		URL:     a.Redis.URL,
		Key:     a.Redis.Key,
		Channel: a.Redis.Channel,
		MaxLen:  a.Redis.MaxLen,
	}, true
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty"`
}

// GetLevel parses the level. Unknown levels map to info.
func (l *LoggingConfig) GetLevel() slog.Level {
	if l == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// GetFormat returns "json" or "text".
func (l *LoggingConfig) GetFormat() string {
	if l != nil && strings.EqualFold(l.Format, "json") {
		return "json"
	}
	return "text"
}

// TelemetryConfig configures span export.
type TelemetryConfig struct {
	// Exporter is none, stdout, or otlp. Default: none
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`

	// SampleRatio is the root span sampling ratio. Default: 1
	SampleRatio *float64 `yaml:"sample_ratio,omitempty"`
}

// Default returns the configuration used when no forge.yaml exists.
func Default() *Config {
	return &Config{StateRoot: DefaultStateRoot}
}

// GetStateRoot returns the state root or the default.
func (c *Config) GetStateRoot() string {
	if c == nil || c.StateRoot == "" {
		return DefaultStateRoot
	}
	return c.StateRoot
}

// Caps merges the configured loop caps over loop.DefaultCaps.
func (c *Config) Caps() (loop.Caps, error) {
	caps := loop.DefaultCaps()
	if c == nil {
		return caps, nil
	}
	for name, tc := range c.Loops {
		kind := loop.Kind(name)
		if _, ok := caps[kind]; !ok {
			return nil, fmt.Errorf("loops: unknown loop kind %q", name)
		}
		merged := caps[kind]
		if tc.Foundation != 0 {
			merged.Foundation = tc.Foundation
		}
		if tc.Intermediate != 0 {
			merged.Intermediate = tc.Intermediate
		}
		if tc.Advanced != 0 {
			merged.Advanced = tc.Advanced
		}
		caps[kind] = merged
	}
	return caps, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Generator != nil && c.Generator.Timeout != "" {
		if d, err := time.ParseDuration(c.Generator.Timeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("generator.timeout: invalid duration %q", c.Generator.Timeout))
		}
	}
	if rc, err := c.Retry.ToRetry(); err != nil {
		errs = append(errs, err)
	} else if err := rc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if caps, err := c.Caps(); err != nil {
		errs = append(errs, err)
	} else if err := caps.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Telemetry != nil {
		switch c.Telemetry.Exporter {
		case "", "none", "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				errs = append(errs, errors.New("telemetry.endpoint is required for the otlp exporter"))
			}
		default:
			errs = append(errs, fmt.Errorf("telemetry.exporter: unknown exporter %q", c.Telemetry.Exporter))
		}
	}
	return errors.Join(errs...)
}

// Load reads and parses a forge.yaml file from the given path.
// If the path is a directory, it looks for forge.yaml or forge.yml in it.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range fileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes forge.yaml content and validates it. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromDir searches for forge.yaml starting from dir and walking up to
// parent directories until found or the root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		cfg, err := Load(absDir)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("%w in %s or any parent directory", ErrNotFound, dir)
		}
		absDir = parent
	}
}
