package config

import (
	"path/filepath"
	"runtime"
	"time"
)

const (
	// DefaultPrimaryPort is the preferred REST port handed to the allocator.
	DefaultPrimaryPort = 7860
	// DefaultControlPort is the preferred control port handed to the allocator.
	DefaultControlPort = 7861

	DefaultDataDir = ".mnesis"
)

// Config is the launcher configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	// DataDir holds the bbolt history database and the default config file.
	DataDir string `json:"data_dir" mapstructure:"data-dir"`

	// ResourcesDir is where the bundled backend executable and its
	// co-located assets live. The backend is spawned with this as its
	// working directory.
	ResourcesDir string `json:"resources_dir" mapstructure:"resources-dir"`

	// BackendName is the base name of the backend executable, without the
	// platform suffix.
	BackendName string `json:"backend_name" mapstructure:"backend-name"`

	// Preferred ports. The allocator probes an 11-wide window above each.
	PreferredPrimaryPort uint16 `json:"preferred_primary_port" mapstructure:"preferred-primary-port"`
	PreferredControlPort uint16 `json:"preferred_control_port" mapstructure:"preferred-control-port"`

	EnableTray bool `json:"enable_tray" mapstructure:"tray"`

	Restart   *RestartConfig   `json:"restart,omitempty" mapstructure:"restart"`
	Readiness *ReadinessConfig `json:"readiness,omitempty" mapstructure:"readiness"`
	Logging   *LogConfig       `json:"logging,omitempty" mapstructure:"logging"`
}

// RestartConfig bounds the crash-restart policy. The delay is flat, not
// exponential; the budget caps consecutive restarts between readiness
// transitions.
type RestartConfig struct {
	MaxAttempts uint          `json:"max_attempts" mapstructure:"max-attempts"`
	Delay       time.Duration `json:"delay" mapstructure:"delay"`
}

// ReadinessConfig drives the two-phase readiness gate.
type ReadinessConfig struct {
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll-interval"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

// LogConfig represents launcher logging configuration. The backend child's
// output goes to a separate append-only backend.log and is not governed by
// these rotation settings.
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable-file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable-console"`
	Filename      string `json:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir,omitempty" mapstructure:"log-dir"`
	MaxSize       int    `json:"max_size" mapstructure:"max-size"`       // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max-backups"` // files
	MaxAge        int    `json:"max_age" mapstructure:"max-age"`         // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json-format"`
}

// DefaultConfig returns a config populated with platform defaults.
func DefaultConfig() *Config {
	return &Config{
		BackendName:          "mnesis-backend",
		PreferredPrimaryPort: DefaultPrimaryPort,
		PreferredControlPort: DefaultControlPort,
		EnableTray:           true,
		Restart: &RestartConfig{
			MaxAttempts: 3,
			Delay:       2 * time.Second,
		},
		Readiness: &ReadinessConfig{
			PollInterval: 500 * time.Millisecond,
			Timeout:      120 * time.Second,
		},
		Logging: &LogConfig{
			Level:         "info",
			EnableFile:    true,
			EnableConsole: true,
			Filename:      "launcher.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
		},
	}
}

// BackendExecutable returns the platform-specific path of the backend
// executable inside ResourcesDir.
func (c *Config) BackendExecutable() string {
	name := c.BackendName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(c.ResourcesDir, name)
}
