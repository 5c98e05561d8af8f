// Package config loads lumen settings.
//
// Priority, highest first: command line flags bound by the caller, LUMEN_* environment
// variables (including values from .env files), the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lumen/internal/composer"
	"lumen/internal/segment"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable lumen reads.
	EnvPrefix = "LUMEN"
	// DefaultConfigName is the config file name without extension.
	DefaultConfigName = "config"
)

// Config holds all lumen settings.
type Config struct {
	Theme       string   `mapstructure:"theme"`
	ThemeDirs   []string `mapstructure:"theme_dirs"`
	WatchThemes bool     `mapstructure:"watch_themes"`

	Async    AsyncConfig    `mapstructure:"async"`
	Render   RenderConfig   `mapstructure:"render"`
	Segments SegmentsConfig `mapstructure:"segments"`
	VCS      VCSConfig      `mapstructure:"vcs"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// AsyncConfig configures the background worker.
type AsyncConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	QueueSize int           `mapstructure:"queue_size"`
}

// RenderConfig configures template rendering.
type RenderConfig struct {
	MaxOutput int `mapstructure:"max_output"`
}

// SegmentsConfig configures the builtin segments.
type SegmentsConfig struct {
	Directory struct {
		MaxDepth int `mapstructure:"max_depth"`
	} `mapstructure:"directory"`
	Time struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"time"`
	Duration struct {
		Threshold time.Duration `mapstructure:"threshold"`
	} `mapstructure:"duration"`
}

// VCSConfig configures repository tracking.
type VCSConfig struct {
	Watch bool `mapstructure:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Dir returns the lumen config directory, $XDG_CONFIG_HOME/lumen or ~/.config/lumen.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lumen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lumen"
	}
	return filepath.Join(home, ".config", "lumen")
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("theme", composer.DefaultTheme)
	v.SetDefault("theme_dirs", []string{filepath.Join(Dir(), "themes")})
	v.SetDefault("watch_themes", false)

	v.SetDefault("async.timeout", 2*time.Second)
	v.SetDefault("async.queue_size", 32)

	v.SetDefault("render.max_output", 4096)

	v.SetDefault("segments.directory.max_depth", 3)
	v.SetDefault("segments.time.format", "15:04:05")
	v.SetDefault("segments.duration.threshold", 2*time.Second)

	v.SetDefault("vcs.watch", true)

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
}

// LoadDotEnv loads .env files from dirs in order. Variables already set, by the
// process or by an earlier file, are kept.
func LoadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the configuration into v and returns it. cfgFile overrides the
// config file search; a missing explicit file is an error, a missing default is not.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	dir := Dir()
	wd, _ := os.Getwd()
	if err := LoadDotEnv(dir, wd); err != nil {
		return nil, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for i, d := range cfg.ThemeDirs {
		cfg.ThemeDirs[i] = expandPath(d)
	}
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the composer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Async.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("async.timeout must be positive, got %s", c.Async.Timeout))
	}
	if c.Async.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("async.queue_size must be positive, got %d", c.Async.QueueSize))
	}
	if c.Render.MaxOutput <= 0 {
		errs = append(errs, fmt.Errorf("render.max_output must be positive, got %d", c.Render.MaxOutput))
	}
	if c.Segments.Directory.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("segments.directory.max_depth must not be negative, got %d", c.Segments.Directory.MaxDepth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ComposerOptions converts the configuration into composer options.
func (c *Config) ComposerOptions(testMode bool) composer.Options {
	return composer.Options{
		Theme:        c.Theme,
		ThemeDirs:    c.ThemeDirs,
		WatchThemes:  c.WatchThemes,
		WatchVCS:     c.VCS.Watch,
		AsyncTimeout: c.Async.Timeout,
		QueueSize:    c.Async.QueueSize,
		MaxOutput:    c.Render.MaxOutput,
		Segments: segment.Options{
			DirectoryMaxDepth: c.Segments.Directory.MaxDepth,
			TimeFormat:        c.Segments.Time.Format,
			DurationThreshold: c.Segments.Duration.Threshold,
			GitTimeout:        c.Async.Timeout,
		},
		TestMode: testMode,
	}
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
