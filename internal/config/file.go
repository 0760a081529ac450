package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var patch Patch
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return patch.Apply(Defaults()), nil
}

// Save writes the configuration as indented JSON.
func Save(path string, c Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns the location used when no explicit config path is given.
func DefaultPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "reflectube-config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".reflectube-config.json")
}
