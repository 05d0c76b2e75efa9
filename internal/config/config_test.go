package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint16(7860), cfg.PreferredPrimaryPort)
	assert.Equal(t, uint16(7861), cfg.PreferredControlPort)
	assert.Equal(t, uint(3), cfg.Restart.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Restart.Delay)
	assert.Equal(t, 500*time.Millisecond, cfg.Readiness.PollInterval)
	assert.True(t, cfg.EnableTray)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "empty backend name",
			mutate:  func(c *Config) { c.BackendName = "" },
			wantErr: "backend_name",
		},
		{
			name:    "zero primary port",
			mutate:  func(c *Config) { c.PreferredPrimaryPort = 0 },
			wantErr: "preferred_primary_port",
		},
		{
			name:    "zero restart attempts",
			mutate:  func(c *Config) { c.Restart.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "negative restart delay",
			mutate:  func(c *Config) { c.Restart.Delay = -time.Second },
			wantErr: "restart.delay",
		},
		{
			name:    "timeout below poll interval",
			mutate:  func(c *Config) { c.Readiness.Timeout = c.Readiness.PollInterval / 2 },
			wantErr: "readiness.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	fileCfg := map[string]interface{}{
		"data_dir":               filepath.Join(dir, "data"),
		"resources_dir":          dir,
		"backend_name":           "custom-backend",
		"preferred_primary_port": 9100,
		"preferred_control_port": 9101,
	}
	data, err := json.Marshal(fileCfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "launcher.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-backend", cfg.BackendName)
	assert.Equal(t, uint16(9100), cfg.PreferredPrimaryPort)
	assert.Equal(t, uint16(9101), cfg.PreferredControlPort)
	// Unset fields keep their defaults.
	assert.Equal(t, uint(3), cfg.Restart.MaxAttempts)
	assert.DirExists(t, cfg.DataDir)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestBackendExecutable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResourcesDir = filepath.Join("opt", "mnesis")

	exe := cfg.BackendExecutable()
	assert.Contains(t, exe, filepath.Join("opt", "mnesis"))
	assert.Contains(t, exe, "mnesis-backend")
}
