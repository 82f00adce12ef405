// Package config resolves Lunaris's server configuration from, in
// increasing precedence: a built-in default, an optional YAML file, the
// environment, and command-line flags — the layering cmd/server/main.go's
// DSN/listen-address flags use, extended with a config file the way the
// rest of the retrieved pack (gopkg.in/yaml.v3) represents config-shaped
// data.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort        = 7435
	defaultDataDirName = ".lunaris"
)

// Config holds the resolved runtime configuration for the server.
type Config struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// fileConfig mirrors the optional on-disk YAML document. Both fields are
// optional; zero values mean "not set" so lower-precedence sources apply.
type fileConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// Load resolves the configuration. flagPort and flagDataDir are the values
// parsed from command-line flags; pass zero/empty when the flag was not
// set by the user so environment and file values can take over.
func Load(configPath string, flagPort int, flagDataDir string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg := Config{
		Port:    DefaultPort,
		DataDir: filepath.Join(home, defaultDataDirName),
	}

	if configPath != "" {
		fc, err := loadFile(configPath)
		if err != nil {
			return Config{}, err
		}
		if fc.Port != 0 {
			cfg.Port = fc.Port
		}
		if fc.DataDir != "" {
			cfg.DataDir = fc.DataDir
		}
	}

	if v := os.Getenv("LUNARIS_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err != nil {
			return Config{}, fmt.Errorf("invalid LUNARIS_PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("LUNARIS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// DBPath returns the database file path for this configuration (§6).
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "lunaris.db")
}
