// Package config loads mpcompat settings from a TOML file with MPCOMPAT_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MPCOMPAT_"

// MaxPeers bounds the simulator.
const MaxPeers = 16

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the complete runtime configuration.
type Config struct {
	Log       Log      `toml:"log" envPrefix:"LOG_"`
	Journal   string   `toml:"journal" env:"JOURNAL"`
	GroupsDir string   `toml:"groups_dir" env:"GROUPS_DIR"`
	Disabled  []string `toml:"disabled_groups" env:"DISABLED_GROUPS" envSeparator:","`
	// Debug enables debug-only sync methods.
	Debug bool `toml:"debug" env:"DEBUG"`
	Peers int  `toml:"peers" env:"PEERS"`
}

// Log configures the root logger.
type Log struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
	File   string `toml:"file" env:"FILE"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:   Log{Level: "info", Format: FormatConsole},
		Peers: 2,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Disabled = trimAll(cfg.Disabled)
	return cfg, cfg.Validate()
}

// FieldError reports one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		errs = append(errs, &FieldError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, &FieldError{Field: "log.format", Message: fmt.Sprintf("must be %s or %s, got %q", FormatConsole, FormatJSON, c.Log.Format)})
	}
	if c.Peers < 1 || c.Peers > MaxPeers {
		errs = append(errs, &FieldError{Field: "peers", Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxPeers, c.Peers)})
	}
	for _, name := range c.Disabled {
		if name == "" {
			errs = append(errs, &FieldError{Field: "disabled_groups", Message: "empty group name"})
			break
		}
	}
	return errors.Join(errs...)
}

func trimAll(names []string) []string {
	out := names[:0]
	for _, n := range names {
		out = append(out, strings.TrimSpace(n))
	}
	return out
}
