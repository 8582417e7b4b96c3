package config

import (
	"os"
	"strings"
)

// Environment variable names
const (
	EnvOff        = "NETMOCK_OFF"
	EnvNetConnect = "NETMOCK_NET_CONNECT"
	EnvAllow      = "NETMOCK_ALLOW"
	EnvLogLevel   = "NETMOCK_LOG_LEVEL"
	EnvLogFormat  = "NETMOCK_LOG_FORMAT"
	EnvConfig     = "NETMOCK_CONFIG"
)

// LoadEnv applies overrides from the process environment.
func LoadEnv(cfg *Config) {
	ApplyEnv(cfg, os.LookupEnv)
}

// ApplyEnv applies overrides found through lookup. Only variables that are
// set and non-empty change cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	// NETMOCK_OFF
	if v, ok := get(EnvOff); ok {
		cfg.Disabled = parseBool(v)
		cfg.SetSource("disabled", SourceEnv)
	}

	// NETMOCK_NET_CONNECT
	if v, ok := get(EnvNetConnect); ok {
		cfg.NetConnect.Enabled = parseBool(v)
		cfg.SetSource("netConnect.enabled", SourceEnv)
	}

	// NETMOCK_ALLOW implies pass-through
	if v, ok := get(EnvAllow); ok {
		var allow []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				allow = append(allow, part)
			}
		}
		cfg.NetConnect.Allow = allow
		cfg.NetConnect.Enabled = true
		cfg.SetSource("netConnect.allow", SourceEnv)
	}

	// NETMOCK_LOG_LEVEL
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
		cfg.SetSource("log.level", SourceEnv)
	}

	// NETMOCK_LOG_FORMAT
	if v, ok := get(EnvLogFormat); ok {
		cfg.Log.Format = v
		cfg.SetSource("log.format", SourceEnv)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
