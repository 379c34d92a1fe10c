// Package config provides configuration file and environment variable support for kigen.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables (KIGEN_*)
//  3. Config file (~/.kigen/config.toml)
//  4. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spetersoncode/kigen/internal/timefmt"
)

// Config represents the kigen configuration.
type Config struct {
	// DB is the path to the local store file.
	// Default: ~/.kigen/kigen.db
	DB string `toml:"db"`

	// NoColor disables colored output.
	NoColor bool `toml:"no_color"`

	// Locale selects the label table for time differences ("ja" or "en").
	// Default: ja
	Locale string `toml:"locale"`

	// Timezone is used when printing absolute timestamps. Empty means local time.
	Timezone string `toml:"timezone"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	// Default: WARN
	LogLevel string `toml:"log_level"`

	Token  TokenConfig  `toml:"token"`
	Watch  WatchConfig  `toml:"watch"`
	Backup BackupConfig `toml:"backup"`
}

// TokenConfig holds defaults for the token commands.
type TokenConfig struct {
	// Algorithm is the signing algorithm used by "token encode", and the
	// HMAC variant "token decode" loads a shared secret with.
	// Default: HS256
	Algorithm string `toml:"algorithm"`

	// KeyFile is read when no --key or --key-file flag is given.
	KeyFile string `toml:"key_file"`
}

// WatchConfig holds defaults for "token watch".
type WatchConfig struct {
	// Interval is the refresh period in seconds.
	// Default: 1
	Interval int `toml:"interval"`
}

// BackupConfig controls rotating snapshots of the store.
type BackupConfig struct {
	// Enabled takes a snapshot when a command opens the store and the
	// newest snapshot is older than IntervalHours.
	// Default: false
	Enabled bool `toml:"enabled"`

	// Path is the snapshot directory. Empty means next to the store file.
	Path string `toml:"path"`

	// IntervalHours is the minimum age of the newest snapshot before
	// another automatic one is taken.
	// Default: 24
	IntervalHours int `toml:"interval_hours"`

	// MaxCount is the number of snapshots kept.
	// Default: 5
	MaxCount int `toml:"max_count"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DB:       "", // Empty means use store.DefaultPath
		Locale:   "ja",
		LogLevel: "WARN",
		Token: TokenConfig{
			Algorithm: "HS256",
		},
		Watch: WatchConfig{
			Interval: 1,
		},
		Backup: BackupConfig{
			IntervalHours: 24,
			MaxCount:      5,
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kigen", "config.toml")
}

// Load loads configuration from the config file and environment variables.
func Load() (*Config, error) {
	if path := os.Getenv("KIGEN_CONFIG"); path != "" {
		return LoadFromPath(path)
	}
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	if db := os.Getenv("KIGEN_DB"); db != "" {
		c.DB = db
	}

	// KIGEN_NO_COLOR - any value means true
	if _, ok := os.LookupEnv("KIGEN_NO_COLOR"); ok {
		c.NoColor = true
	}

	if locale := os.Getenv("KIGEN_LOCALE"); locale != "" {
		c.Locale = locale
	}

	if tz := os.Getenv("KIGEN_TIMEZONE"); tz != "" {
		c.Timezone = tz
	}

	if level := os.Getenv("KIGEN_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if alg := os.Getenv("KIGEN_TOKEN_ALGORITHM"); alg != "" {
		c.Token.Algorithm = alg
	}

	if keyFile := os.Getenv("KIGEN_TOKEN_KEY_FILE"); keyFile != "" {
		c.Token.KeyFile = keyFile
	}

	if interval := os.Getenv("KIGEN_WATCH_INTERVAL"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil && n > 0 {
			c.Watch.Interval = n
		}
	}

	// KIGEN_BACKUP_ENABLED - "1", "true", "yes" enable; anything else disables
	if v, ok := os.LookupEnv("KIGEN_BACKUP_ENABLED"); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.Backup.Enabled = true
		default:
			c.Backup.Enabled = false
		}
	}

	if dir := os.Getenv("KIGEN_BACKUP_PATH"); dir != "" {
		c.Backup.Path = dir
	}
}

// Validate checks values that would otherwise fail later at use.
func (c *Config) Validate() error {
	if !timefmt.IsSupportedLocale(c.Locale) {
		return fmt.Errorf("unsupported locale %q (use ja or en)", c.Locale)
	}
	if _, err := timefmt.LoadLocation(c.Timezone); err != nil {
		return err
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %d", c.Watch.Interval)
	}
	if c.Backup.IntervalHours < 0 {
		return fmt.Errorf("backup.interval_hours must not be negative, got %d", c.Backup.IntervalHours)
	}
	if c.Backup.MaxCount < 1 {
		return fmt.Errorf("backup.max_count must be at least 1, got %d", c.Backup.MaxCount)
	}
	return nil
}

// GetDB returns the store path, or "" to signal use of store.DefaultPath.
func (c *Config) GetDB() string {
	return c.DB
}

// Labels returns the label table for the configured locale.
func (c *Config) Labels() timefmt.Labels {
	return timefmt.LabelsFor(c.Locale)
}

// SampleConfig returns a sample configuration file content.
func SampleConfig() string {
	return `# Kigen Configuration File
# Location: ~/.kigen/config.toml (override with KIGEN_CONFIG)
#
# Configuration priority (highest to lowest):
#   1. Command-line flags
#   2. Environment variables (KIGEN_*)
#   3. This config file
#   4. Built-in defaults

# Path to the local store
# Default: ~/.kigen/kigen.db
# Environment: KIGEN_DB
# db = "/path/to/kigen.db"

# Disable colored output
# Environment: KIGEN_NO_COLOR (any value = true)
# no_color = false

# Label language for time differences: ja or en
# Environment: KIGEN_LOCALE
# locale = "ja"

# Timezone for absolute timestamps (IANA name). Empty means local time.
# Environment: KIGEN_TIMEZONE
# timezone = "Asia/Tokyo"

# DEBUG, INFO, WARN or ERROR
# Environment: KIGEN_LOG_LEVEL
# log_level = "WARN"

[token]
# Environment: KIGEN_TOKEN_ALGORITHM
# algorithm = "HS256"

# Environment: KIGEN_TOKEN_KEY_FILE
# key_file = "~/.kigen/secret"

[watch]
# Refresh period in seconds
# Environment: KIGEN_WATCH_INTERVAL
# interval = 1

[backup]
# Snapshot the store automatically when it is opened
# Environment: KIGEN_BACKUP_ENABLED (1/true/yes)
# enabled = false

# Snapshot directory. Empty means next to the store file.
# Environment: KIGEN_BACKUP_PATH
# path = ""

# Hours between automatic snapshots
# interval_hours = 24

# Number of snapshots kept
# max_count = 5
`
}

// WriteConfigFile writes the sample config file to the specified path.
// Creates parent directories if needed.
func WriteConfigFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(SampleConfig()), 0644)
}
