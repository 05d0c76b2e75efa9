package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the default config file looked up inside the data dir.
const ConfigFileName = "launcher.json"

// Load loads configuration from file, environment, and defaults, in that
// order of increasing precedence for env overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	setupViper()

	configPath := viper.GetString("config")
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if found, path, err := findAndLoadConfigFile(cfg); err != nil && found {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupViper() {
	viper.SetEnvPrefix("MNESIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// findAndLoadConfigFile looks for launcher.json in the data dir. Returns
// whether a file was found, its path, and any load error.
func findAndLoadConfigFile(cfg *Config) (bool, string, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return false, "", nil
		}
		dataDir = filepath.Join(homeDir, DefaultDataDir)
	}

	path := filepath.Join(dataDir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, path, nil
	}
	return true, path, loadConfigFile(path, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := viper.GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("resources-dir"); v != "" {
		cfg.ResourcesDir = v
	}
	if v := viper.GetUint16("preferred-primary-port"); v != 0 {
		cfg.PreferredPrimaryPort = v
	}
	if v := viper.GetUint16("preferred-control-port"); v != 0 {
		cfg.PreferredControlPort = v
	}
}

// finalize fills derived defaults, creates the data dir, and validates.
func finalize(cfg *Config) error {
	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, DefaultDataDir)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	if cfg.ResourcesDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve launcher executable: %w", err)
		}
		cfg.ResourcesDir = filepath.Dir(exe)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
