package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands ${VAR_NAME} and ${VAR_NAME:-default} using lookup.
// An unset variable without default expands to "".
func ExpandEnvVars(input string, lookup func(string) (string, bool)) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if v, ok := lookup(sub[1]); ok && v != "" {
			return v
		}
		return sub[2]
	})
}

// LoadFromFile reads a Config from a JSON or YAML file over Default.
// YAML is used for .yaml and .yml, JSON otherwise.
func LoadFromFile(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	cfg, err := Parse(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// relative definition globs are relative to the file
	base := filepath.Dir(path)
	for i, pattern := range cfg.Definitions {
		if !filepath.IsAbs(pattern) {
			cfg.Definitions[i] = filepath.Join(base, pattern)
		}
	}
	return cfg, nil
}

// Parse decodes data over Default after expanding environment references.
func Parse(data []byte, isYAML bool) (*Config, error) {
	expanded := []byte(ExpandEnvVars(string(data), os.LookupEnv))

	cfg := Default()
	if isYAML {
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
		}
	} else {
		if !json.Valid(expanded) {
			return nil, ErrInvalidJSON
		}
		if err := json.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	}
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
