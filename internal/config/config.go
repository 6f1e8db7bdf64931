// Package config handles loading and validating triage configuration.
// Values come from built-in defaults, the global config file, the project
// config file, an explicit file, and TRIAGE_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/marcus/triage/internal/logging"
)

// ProjectConfigName is the config file looked up in the project directory.
const ProjectConfigName = "triage.yaml"

// EnvPrefix prefixes environment overrides, e.g. TRIAGE_SCORING_BASE_URL.
const EnvPrefix = "TRIAGE"

// Defaults.
const (
	DefaultBaseURL       = "http://localhost:8000/api/tasks"
	DefaultAnalyzePath   = "/analyze/"
	DefaultSuggestPath   = "/suggest/"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 1
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultTopN          = 3
	DefaultStrategy      = "smart"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogPath       = "~/.local/share/triage/logs"
	DefaultRetentionDays = 7
	DefaultHistoryPath   = "~/.local/share/triage/triage.db"
	DefaultDebounce      = 500 * time.Millisecond
)

var (
	ErrMissingBaseURL     = errors.New("scoring.base_url is required")
	ErrInvalidBaseURL     = errors.New("scoring.base_url must be an absolute http(s) URL")
	ErrInvalidTimeout     = errors.New("scoring.timeout must be positive")
	ErrInvalidMaxAttempts = errors.New("scoring.max_attempts must be at least 1")
	ErrInvalidTopN        = errors.New("scoring.top_n must be at least 1")
	ErrInvalidLogLevel    = errors.New("logging.level must be debug, info, warn or error")
	ErrInvalidLogFormat   = errors.New("logging.format must be json or text")
	ErrCronAndInterval    = errors.New("watch.cron and watch.interval are mutually exclusive")
)

// Config holds all triage configuration.
type Config struct {
	Scoring  ScoringConfig `mapstructure:"scoring"`
	Strategy string        `mapstructure:"strategy"`
	Logging  LoggingConfig `mapstructure:"logging"`
	History  HistoryConfig `mapstructure:"history"`
	Watch    WatchConfig   `mapstructure:"watch"`
}

// ScoringConfig locates the scoring service and bounds each request.
type ScoringConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AnalyzePath string        `mapstructure:"analyze_path"`
	SuggestPath string        `mapstructure:"suggest_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"` // 1 disables retries
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	TopN        int           `mapstructure:"top_n"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// HistoryConfig controls the analysis run log.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WatchConfig schedules re-analysis in watch mode.
type WatchConfig struct {
	Cron     string        `mapstructure:"cron"`
	Interval string        `mapstructure:"interval"`
	Debounce time.Duration `mapstructure:"debounce"`
	Window   *WindowConfig `mapstructure:"window"` // scheduled runs only fire inside it
}

// WindowConfig is a daily time window, e.g. working hours. End may be
// earlier than Start for windows that cross midnight.
type WindowConfig struct {
	Start    string `mapstructure:"start"` // HH:MM
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			BaseURL:     DefaultBaseURL,
			AnalyzePath: DefaultAnalyzePath,
			SuggestPath: DefaultSuggestPath,
			Timeout:     DefaultTimeout,
			MaxAttempts: DefaultMaxAttempts,
			RetryDelay:  DefaultRetryDelay,
			TopN:        DefaultTopN,
		},
		Strategy: DefaultStrategy,
		Logging: LoggingConfig{
			Level:         DefaultLogLevel,
			Path:          DefaultLogPath,
			Format:        DefaultLogFormat,
			RetentionDays: DefaultRetentionDays,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
	}
}

// GlobalConfigPath returns $XDG_CONFIG_HOME/triage/config.yaml, falling back
// to ~/.config/triage/config.yaml.
func GlobalConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "triage", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "triage", "config.yaml")
}

// Load reads the global config and the project config in the working
// directory. A non-empty explicit path is merged last and must exist.
func Load(explicit string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	v, err := layered(cwd, GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := merge(v, explicit); err != nil {
			return nil, err
		}
	}
	return decode(v)
}

// LoadFromPaths reads globalPath then projectDir/triage.yaml. Missing files
// are skipped.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v, err := layered(projectDir, globalPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func layered(projectDir, globalPath string) (*viper.Viper, error) {
	v := newViper()
	if globalPath != "" {
		if err := merge(v, globalPath); err != nil {
			return nil, err
		}
	}
	if projectDir != "" {
		if err := merge(v, filepath.Join(projectDir, ProjectConfigName)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	d := DefaultConfig()
	v.SetDefault("scoring.base_url", d.Scoring.BaseURL)
	v.SetDefault("scoring.analyze_path", d.Scoring.AnalyzePath)
	v.SetDefault("scoring.suggest_path", d.Scoring.SuggestPath)
	v.SetDefault("scoring.timeout", d.Scoring.Timeout)
	v.SetDefault("scoring.max_attempts", d.Scoring.MaxAttempts)
	v.SetDefault("scoring.retry_delay", d.Scoring.RetryDelay)
	v.SetDefault("scoring.top_n", d.Scoring.TopN)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.retention_days", d.Logging.RetentionDays)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("watch.cron", d.Watch.Cron)
	v.SetDefault("watch.interval", d.Watch.Interval)
	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// merge layers the YAML file at path over v. A missing file is not an error.
func merge(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg and returns the first problem found.
func Validate(cfg *Config) error {
	if cfg.Watch.Cron != "" && cfg.Watch.Interval != "" {
		return ErrCronAndInterval
	}
	if cfg.Watch.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Watch.Cron); err != nil {
			return fmt.Errorf("watch.cron %q: %w", cfg.Watch.Cron, err)
		}
	}
	if cfg.Watch.Interval != "" {
		d, err := time.ParseDuration(cfg.Watch.Interval)
		if err != nil {
			return fmt.Errorf("watch.interval %q: %w", cfg.Watch.Interval, err)
		}
		if d <= 0 {
			return fmt.Errorf("watch.interval %q: must be positive", cfg.Watch.Interval)
		}
	}

	if cfg.Scoring.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(cfg.Scoring.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if cfg.Scoring.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.Scoring.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if cfg.Scoring.TopN < 1 {
		return ErrInvalidTopN
	}

	if cfg.Logging.Level != "" {
		if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
			return ErrInvalidLogLevel
		}
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// LogConfig converts to the logging package's configuration.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Path:          c.Logging.Path,
		Format:        c.Logging.Format,
		RetentionDays: c.Logging.RetentionDays,
	}
}

// HistoryPath returns the expanded history database path.
func (c *Config) HistoryPath() string {
	return logging.ExpandPath(c.History.Path)
}

// WatchInterval parses Watch.Interval. It returns 0 when unset or invalid.
func (c *Config) WatchInterval() time.Duration {
	if c.Watch.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Watch.Interval)
	if err != nil {
		return 0
	}
	return d
}
