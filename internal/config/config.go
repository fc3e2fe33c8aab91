// Package config loads the user configuration of the ui5project tooling.
//
// Values are read, in increasing order of precedence, from built-in
// defaults, the JSON file ~/.ui5rc and UI5_* environment variables.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/albertocavalcante/go-ui5project/framework/npm"
)

const (
	// AppName is the application name.
	AppName = "ui5"
	// RCFileName is the name of the configuration file in the home directory.
	RCFileName = ".ui5rc"

	DefaultConcurrency = 5
	DefaultTimeout     = 15 * time.Second
)

// Keys of the configuration values.
const (
	KeyDataDir     = "ui5DataDir"
	KeyRegistry    = "registry"
	KeyConcurrency = "concurrency"
	KeyTimeout     = "timeout"
)

// Config is the user configuration.
type Config struct {
	// UI5DataDir holds installed framework packages and their locks.
	UI5DataDir  string        `mapstructure:"ui5DataDir"`
	Registry    string        `mapstructure:"registry"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile replaces ~/.ui5rc. It must exist when set.
	ConfigFile string

	// HomeDir replaces the user's home directory.
	HomeDir string

	// Cwd resolves a relative UI5DataDir. Defaults to the working directory.
	Cwd string
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig(home string) *Config {
	return &Config{
		UI5DataDir:  filepath.Join(home, "."+AppName),
		Registry:    npm.DefaultRegistryURL,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
	}
}

// Load reads the configuration.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load config canceled: %w", err)
	}

	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	opts.HomeDir = home

	v := viper.New()
	defaults := DefaultConfig(home)
	v.SetDefault(KeyDataDir, defaults.UI5DataDir)
	v.SetDefault(KeyRegistry, defaults.Registry)
	v.SetDefault(KeyConcurrency, defaults.Concurrency)
	v.SetDefault(KeyTimeout, defaults.Timeout)

	// ui5DataDir maps to UI5_DATA_DIR rather than UI5_UI5DATADIR.
	for key, env := range map[string]string{
		KeyDataDir:     "UI5_DATA_DIR",
		KeyRegistry:    "UI5_REGISTRY",
		KeyConcurrency: "UI5_CONCURRENCY",
		KeyTimeout:     "UI5_TIMEOUT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetConfigType("json")
	rcFile, err := rcPath(opts)
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(rcFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case opts.ConfigFile != "":
			return nil, fmt.Errorf("failed to read config file %s: %w", rcFile, err)
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", rcFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.UI5DataDir) {
		cwd := opts.Cwd
		if cwd == "" {
			var err error
			if cwd, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
		cfg.UI5DataDir = filepath.Join(cwd, cfg.UI5DataDir)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the tooling cannot use.
func (c *Config) Validate() error {
	if c.UI5DataDir == "" {
		return errors.New("invalid configuration: ui5DataDir must not be empty")
	}
	if c.Registry == "" {
		return errors.New("invalid configuration: registry must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid configuration: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return errors.New("invalid configuration: timeout must be positive")
	}
	return nil
}

// Keys returns the configuration keys in display order.
func Keys() []string {
	return []string{KeyDataDir, KeyRegistry, KeyConcurrency, KeyTimeout}
}

// Get returns the value of key rendered as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case KeyDataDir:
		return c.UI5DataDir, nil
	case KeyRegistry:
		return c.Registry, nil
	case KeyConcurrency:
		return strconv.Itoa(c.Concurrency), nil
	case KeyTimeout:
		return c.Timeout.String(), nil
	}
	return "", unknownKeyError(key)
}

// Set writes key to the configuration file. An empty value removes the key.
// Other keys in the file are preserved.
func Set(opts LoadOptions, key, value string) error {
	if !slices.Contains(Keys(), key) {
		return unknownKeyError(key)
	}
	rcFile, err := rcPath(opts)
	if err != nil {
		return err
	}

	settings := map[string]any{}
	data, err := os.ReadFile(rcFile)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", rcFile, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read config file %s: %w", rcFile, err)
	}

	if value == "" {
		delete(settings, key)
	} else {
		v, err := parseValue(key, value)
		if err != nil {
			return err
		}
		settings[key] = v
	}

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(rcFile, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", rcFile, err)
	}
	return nil
}

func parseValue(key, value string) (any, error) {
	switch key {
	case KeyConcurrency:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid value %q for %s: must be a positive integer", value, key)
		}
		return n, nil
	case KeyTimeout:
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
	}
	return value, nil
}

func rcPath(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		return opts.ConfigFile, nil
	}
	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, RCFileName), nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown configuration key %q, must be one of: %s", key, strings.Join(Keys(), ", "))
}
