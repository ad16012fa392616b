// Package config loads layered compilerd configuration. Values come from built-in
// defaults, then the YAML config file, then COMPILERD_ environment variables, then
// command-line flags that were explicitly set. Secrets such as DSNs may live here
// for local use but are normally kept in the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	apperrors "compilerd/service/internal/errors"
	"compilerd/service/internal/xdg"
)

// EnvPrefix marks environment variables read into the configuration.
// A double underscore separates nesting levels: COMPILERD_SERVER__LISTEN -> server.listen.
const EnvPrefix = "COMPILERD_"

// Config holds the service and client settings.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
	Client ClientConfig `koanf:"client"`
}

// ServerConfig configures `compilerd serve`.
type ServerConfig struct {
	Listen            string        `koanf:"listen"`
	TLSCert           string        `koanf:"tls_cert"`
	TLSKey            string        `koanf:"tls_key"`
	MaxMessageBytes   int           `koanf:"max_message_bytes"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	DefaultConnection string        `koanf:"default_connection"`
	CompileOnly       bool          `koanf:"compile_only"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ClientConfig configures `compilerd compile` and `compilerd connect`.
type ClientConfig struct {
	Address  string `koanf:"address"`
	Insecure bool   `koanf:"insecure"`
	Root     string `koanf:"root"`
	// Connections maps connection names to DSNs; names not listed are looked up in the keychain
	Connections map[string]string `koanf:"connections"`
	Mode        string            `koanf:"mode"`
	MaxRows     int               `koanf:"max_rows"`
	MaxRounds   int               `koanf:"max_rounds"`
}

const (
	ModeCompileAndRender = "compile_and_render"
	ModeCompileOnly      = "compile_only"
)

// Defaults returns the built-in configuration as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"server.listen":             "0.0.0.0:14310",
		"server.tls_cert":           "",
		"server.tls_key":            "",
		"server.max_message_bytes":  64 << 20,
		"server.shutdown_timeout":   "10s",
		"server.default_connection": "default_connection",
		"server.compile_only":       false,
		"log.level":                 "info",
		"log.format":                "json",
		"client.address":            "localhost:14310",
		"client.insecure":           true,
		"client.root":               ".",
		"client.mode":               ModeCompileAndRender,
		"client.max_rows":           1000,
		"client.max_rounds":         32,
	}
}

// Options selects the sources Load reads beyond the defaults.
type Options struct {
	// File is an explicit config file; it must exist. Empty selects the XDG default,
	// which is skipped when missing.
	File string
	// Flags are merged last; only flags that were changed are applied.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys. Unmapped flags are ignored.
	FlagKeys map[string]string
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := opts.File
	if path == "" {
		def, err := xdg.ConfigFile()
		if err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, apperrors.Wrap(apperrors.ConfigError, "read config file "+path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigError, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns COMPILERD_CLIENT__CONNECTIONS__WAREHOUSE into client.connections.warehouse.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.MaxMessageBytes < 0 {
		errs = append(errs, errors.New("server.max_message_bytes must not be negative"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	switch c.Client.Mode {
	case ModeCompileAndRender, ModeCompileOnly:
	default:
		errs = append(errs, fmt.Errorf("client.mode %q is not %s or %s", c.Client.Mode, ModeCompileAndRender, ModeCompileOnly))
	}
	if len(errs) > 0 {
		return apperrors.Wrap(apperrors.ConfigError, "invalid configuration", errors.Join(errs...))
	}
	return nil
}
