// Package config loads subcheck settings from .subcheck.yaml, SUBCHECK_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/phobologic/subcheck/internal/style"
)

// AppFs is the filesystem config files are read from.
var AppFs = afero.NewOsFs()

// Config holds the application configuration.
type Config struct {
	Header   Header   `mapstructure:"header"`
	Build    Build    `mapstructure:"build"`
	Style    Style    `mapstructure:"style"`
	Scan     Scan     `mapstructure:"scan"`
	Registry Registry `mapstructure:"registry"`
	Log      Log      `mapstructure:"log"`
	Output   Output   `mapstructure:"output"`
}

type Header struct {
	Marker string `mapstructure:"marker" validate:"required"`
	Window int    `mapstructure:"window" validate:"gt=0"`
}

type Build struct {
	Command     string        `mapstructure:"command" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SettleDelay time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
}

type Style struct {
	Enabled bool          `mapstructure:"enabled"`
	Image   string        `mapstructure:"image" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Scan struct {
	// Workers bounds per-file concurrency; 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers" validate:"gte=0"`
}

type Registry struct {
	// Path is a rule table file; empty selects the embedded table.
	Path string `mapstructure:"path"`
}

type Log struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type Output struct {
	Format string `mapstructure:"format" validate:"oneof=text json toon"`
	Color  string `mapstructure:"color" validate:"oneof=auto always never"`
}

var defaults = map[string]any{
	"header.marker":      "By: ",
	"header.window":      500,
	"build.command":      "make",
	"build.timeout":      2 * time.Minute,
	"build.settle_delay": 1100 * time.Millisecond,
	"style.enabled":      true,
	"style.image":        style.DefaultImage,
	"style.timeout":      2 * time.Minute,
	"scan.workers":       0,
	"registry.path":      "",
	"log.level":          "warn",
	"output.format":      "text",
	"output.color":       "auto",
}

// New returns a viper instance carrying every default, bound to SUBCHECK_*
// environment variables ("build.timeout" reads SUBCHECK_BUILD_TIMEOUT).
func New() *viper.Viper {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetEnvPrefix("SUBCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads configuration into v. An explicit file must exist; otherwise
// .subcheck.yaml is looked up in the working directory and then the home
// directory, and its absence is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".subcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}
