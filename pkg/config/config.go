package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/getmockd/netmock/pkg/logging"
)

// Value sources recorded in Config.Sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Config is the engine configuration.
type Config struct {
	// Disabled turns interception off: every request passes through.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	Log         LogConfig         `json:"log" yaml:"log"`
	NetConnect  NetConnectConfig  `json:"netConnect" yaml:"netConnect"`
	Passthrough PassthroughConfig `json:"passthrough" yaml:"passthrough"`

	// Definitions are glob patterns of definition files loaded at start.
	Definitions []string `json:"definitions,omitempty" yaml:"definitions,omitempty"`

	// MaxLogEntries bounds the request history.
	MaxLogEntries int `json:"maxLogEntries,omitempty" yaml:"maxLogEntries,omitempty"`

	// Sources maps overridden keys to SourceEnv, SourceFile or SourceFlag.
	Sources map[string]string `json:"-" yaml:"-"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// NetConnectConfig configures pass-through of unmatched requests.
type NetConnectConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Allow restricts pass-through to matching hosts: exact "host" or
	// "host:port", or globs containing '*'.
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
}

// PassthroughConfig configures real network calls.
type PassthroughConfig struct {
	// Timeout is a duration string such as "5s"; empty means none.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is given:
// warnings logged as text, pass-through disabled.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: string(logging.FormatText),
		},
		MaxLogEntries: 1000,
		Sources:       make(map[string]string),
	}
}

// TimeoutDuration parses Passthrough.Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Passthrough.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Passthrough.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid passthrough timeout %q: %w", c.Passthrough.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative passthrough timeout %q", c.Passthrough.Timeout)
	}
	return d, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxLogEntries < 0 {
		errs = append(errs, fmt.Errorf("maxLogEntries must not be negative, got %d", c.MaxLogEntries))
	}
	for i, a := range c.NetConnect.Allow {
		if a == "" {
			errs = append(errs, fmt.Errorf("netConnect.allow[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// Logging returns the logging configuration for Log.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Log.Level != "" {
		cfg.Level = logging.ParseLevel(c.Log.Level)
	}
	if c.Log.Format != "" {
		cfg.Format = logging.ParseFormat(c.Log.Format)
	}
	return cfg
}

// SetSource records where the value of key came from.
func (c *Config) SetSource(key, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
}
