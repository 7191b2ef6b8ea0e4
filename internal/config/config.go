// Package config loads the vpk command's settings from defaults, an optional
// TOML file and GOVPK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/javi11/govpk/internal/bundle"
)

const (
	// AppName names the config and cache directories.
	AppName = "govpk"
	// EnvPrefix is prepended to environment overrides, e.g. GOVPK_WORKERS.
	EnvPrefix = "GOVPK"
	// FileName is the config file looked up in Dir.
	FileName = "config.toml"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the effective CLI configuration.
type Config struct {
	AddonsDir string       `mapstructure:"addons_dir" toml:"addons_dir"`
	OutputDir string       `mapstructure:"output_dir" toml:"output_dir"`
	CacheDir  string       `mapstructure:"cache_dir" toml:"cache_dir"`
	Strict    bool         `mapstructure:"strict" toml:"strict"`
	Workers   int          `mapstructure:"workers" toml:"workers"`
	Log       LogConfig    `mapstructure:"log" toml:"log"`
	Export    ExportConfig `mapstructure:"export" toml:"export"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// ExportConfig holds bundle export defaults.
type ExportConfig struct {
	Compression string `mapstructure:"compression" toml:"compression"`
	Level       int    `mapstructure:"level" toml:"level"`
}

// Dir returns $XDG_CONFIG_HOME/govpk, or the platform equivalent.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Default returns the built in configuration.
func Default() Config {
	cache := filepath.Join(os.TempDir(), AppName)
	if d, err := os.UserCacheDir(); err == nil {
		cache = filepath.Join(d, AppName)
	}
	out := "."
	if home, err := os.UserHomeDir(); err == nil {
		out = filepath.Join(home, "Downloads")
	}
	return Config{
		AddonsDir: ".",
		OutputDir: out,
		CacheDir:  cache,
		Workers:   1,
		Log:       LogConfig{Level: "info"},
		Export:    ExportConfig{Compression: "zstd", Level: 3},
	}
}

// Load resolves the configuration. An explicit path must exist; otherwise the
// file in Dir is used when present. It returns the file that was read, if any.
func Load(path string) (Config, string, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("addons_dir", d.AddonsDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("export.compression", d.Export.Compression)
	v.SetDefault("export.level", d.Export.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	resolved := ""
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("config file %s: %w", path, err)
		}
		resolved = path
	} else if dir, err := Dir(); err == nil {
		if p := filepath.Join(dir, FileName); fileExists(p) {
			resolved = p
		}
	}
	if resolved != "" {
		v.SetConfigFile(resolved)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", fmt.Errorf("read %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, resolved, nil
}

// Validate checks values viper cannot type check.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	comp, err := bundle.ParseCompression(c.Export.Compression)
	if err != nil {
		errs = append(errs, fmt.Errorf("export.compression: %w", err))
	} else if comp == bundle.LZ4 && (c.Export.Level < 0 || c.Export.Level > 9) {
		errs = append(errs, fmt.Errorf("export.level %d out of range for lz4", c.Export.Level))
	} else if comp == bundle.Zstd && (c.Export.Level < 0 || c.Export.Level > 22) {
		errs = append(errs, fmt.Errorf("export.level %d out of range for zstd", c.Export.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Render marshals c as TOML.
func Render(c Config) ([]byte, error) {
	return toml.Marshal(c)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
