package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netmock/pkg/logging"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Disabled)
	assert.False(t, cfg.NetConnect.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.MaxLogEntries)
	assert.NoError(t, cfg.Validate())

	lc := cfg.Logging()
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.Equal(t, logging.FormatText, lc.Format)
}

func TestLoadFromFileYAML(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("testdata", "netmock.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.NetConnect.Enabled)
	assert.Equal(t, []string{"localhost", "*.internal.test"}, cfg.NetConnect.Allow)
	assert.Equal(t, []string{filepath.Join("testdata", "fixtures", "*.json")}, cfg.Definitions)
	assert.Equal(t, 50, cfg.MaxLogEntries)

	d, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	lc := cfg.Logging()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("NETMOCK_TEST_LEVEL", "error")
	cfg, err := LoadFromFile(filepath.Join("testdata", "netmock.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadFromFileJSON(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("testdata", "netmock.json"))
	require.NoError(t, err)
	assert.True(t, cfg.Disabled)
	assert.False(t, cfg.NetConnect.Enabled)
	assert.Equal(t, []string{"/abs/*.yaml"}, cfg.Definitions)
	// defaults survive
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	badJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte("{"), 0o644))
	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("log: [unclosed"), 0o644))
	badTimeout := filepath.Join(dir, "timeout.yaml")
	require.NoError(t, os.WriteFile(badTimeout, []byte("passthrough:\n  timeout: soon\n"), 0o644))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "missing.yaml"), ErrFileNotFound},
		{"empty", empty, ErrEmptyFile},
		{"bad json", badJSON, ErrInvalidJSON},
		{"bad yaml", badYAML, ErrInvalidYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("directory", func(t *testing.T) {
		_, err := LoadFromFile(dir)
		assert.Error(t, err)
	})
	t.Run("bad timeout", func(t *testing.T) {
		_, err := LoadFromFile(badTimeout)
		assert.ErrorContains(t, err, "passthrough timeout")
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	ApplyEnv(cfg, mapLookup(map[string]string{
		EnvOff:       "yes",
		EnvAllow:     "localhost, api.test:8080 ,",
		EnvLogLevel:  "debug",
		EnvLogFormat: "json",
	}))

	assert.True(t, cfg.Disabled)
	assert.True(t, cfg.NetConnect.Enabled)
	assert.Equal(t, []string{"localhost", "api.test:8080"}, cfg.NetConnect.Allow)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, SourceEnv, cfg.Sources["netConnect.allow"])
	assert.Equal(t, SourceEnv, cfg.Sources["disabled"])
}

func TestApplyEnvNetConnect(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"ON", true},
		{"0", false},
		{"false", false},
		{"nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := Default()
			cfg.NetConnect.Enabled = !tt.want
			ApplyEnv(cfg, mapLookup(map[string]string{EnvNetConnect: tt.value}))
			assert.Equal(t, tt.want, cfg.NetConnect.Enabled)
		})
	}
}

func TestApplyEnvIgnoresEmpty(t *testing.T) {
	cfg := Default()
	ApplyEnv(cfg, mapLookup(map[string]string{EnvLogLevel: "  ", EnvOff: ""}))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Disabled)
	assert.Empty(t, cfg.Sources)
}

func TestExpandEnvVars(t *testing.T) {
	lookup := mapLookup(map[string]string{"HOST": "api.test", "EMPTY": ""})
	tests := []struct {
		input string
		want  string
	}{
		{"${HOST}", "api.test"},
		{"http://${HOST}:80", "http://api.test:80"},
		{"${MISSING:-fallback}", "fallback"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${MISSING}", ""},
		{"$HOST", "$HOST"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandEnvVars(tt.input, lookup))
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxLogEntries = -1
	cfg.NetConnect.Allow = []string{""}
	cfg.Passthrough.Timeout = "-1s"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxLogEntries")
	assert.Contains(t, err.Error(), "allow[0]")
	assert.Contains(t, err.Error(), "negative")
}
