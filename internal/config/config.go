// Package config provides configuration loading and validation for remapflame.
// Flags, an explicitly named YAML file and built-in defaults are merged through a
// viper instance owned by the invocation, then validated before any file is read.
package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/viper"

	"remapflame/internal/errors"
)

// LogFormat selects the slog handler used for run messages.
type LogFormat string

// Supported log formats. LogFormatAuto picks text on a terminal and JSON otherwise.
const (
	LogFormatAuto LogFormat = "auto"
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config keys shared by the flag bindings and the YAML file.
const (
	KeyMarker    = "marker"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyBackup    = "backup"
	KeyWatch     = "watch"
	KeyDryRun    = "dry_run"
	KeyPprof     = "pprof"
)

// DefaultMarker is the literal prefix every remappable token starts with.
const DefaultMarker = "func"

// Config holds all runtime options of a single remap run.
// MappingFile and TargetFile come from the positional arguments and are
// never read from the config file.
type Config struct {
	MappingFile string
	TargetFile  string

	Marker    string    `mapstructure:"marker"`
	LogLevel  string    `mapstructure:"log_level"`
	LogFormat LogFormat `mapstructure:"log_format"`
	Backup    bool      `mapstructure:"backup"`
	Watch     bool      `mapstructure:"watch"`
	DryRun    bool      `mapstructure:"dry_run"`
	Pprof     bool      `mapstructure:"pprof"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMarker, DefaultMarker)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, string(LogFormatAuto))
	v.SetDefault(KeyBackup, false)
	v.SetDefault(KeyWatch, false)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyPprof, false)
}

// Load reads configFile into v, if one is named, and decodes the merged settings.
// No file is discovered implicitly; without --config only flags and defaults apply.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigErrorWithPath(configFile, "failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("failed to decode configuration", err)
	}
	return cfg, nil
}

// Validate checks the settings and resolves the input paths.
// It runs before the mapping file is opened, so a bad option never
// leaves a half-written output behind.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}

	if err := c.validateMarker(); err != nil {
		return err
	}

	if _, ok := parseLevel(c.LogLevel); !ok {
		return errors.NewConfigError("log level must be one of debug, info, warn, error", nil)
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = LogFormatAuto
	case LogFormatAuto, LogFormatText, LogFormatJSON:
	default:
		return errors.NewConfigError("log format must be 'auto', 'text' or 'json'", nil)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.MappingFile == "" {
		return errors.NewConfigError("mapping file is required", nil)
	}
	if c.TargetFile == "" {
		return errors.NewConfigError("target file is required", nil)
	}

	absMapping, err := filepath.Abs(c.MappingFile)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.MappingFile, "invalid mapping file path", err)
	}
	absTarget, err := filepath.Abs(c.TargetFile)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.TargetFile, "invalid target file path", err)
	}

	c.MappingFile = absMapping
	c.TargetFile = absTarget
	return nil
}

func (c *Config) validateMarker() error {
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if strings.IndexFunc(c.Marker, unicode.IsSpace) >= 0 {
		return errors.NewConfigError("marker must not contain whitespace", nil)
	}
	return nil
}

// SlogLevel returns the configured level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, ok := parseLevel(c.LogLevel)
	if !ok {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
