package config

import "fmt"

// Validate checks the configuration for values the launcher cannot run with.
func (c *Config) Validate() error {
	if c.BackendName == "" {
		return fmt.Errorf("backend_name must not be empty")
	}
	if c.PreferredPrimaryPort == 0 {
		return fmt.Errorf("preferred_primary_port must be non-zero")
	}
	if c.PreferredControlPort == 0 {
		return fmt.Errorf("preferred_control_port must be non-zero")
	}

	if c.Restart == nil {
		return fmt.Errorf("restart configuration missing")
	}
	if c.Restart.MaxAttempts == 0 {
		return fmt.Errorf("restart.max_attempts must be at least 1")
	}
	if c.Restart.Delay <= 0 {
		return fmt.Errorf("restart.delay must be positive")
	}

	if c.Readiness == nil {
		return fmt.Errorf("readiness configuration missing")
	}
	if c.Readiness.PollInterval <= 0 {
		return fmt.Errorf("readiness.poll_interval must be positive")
	}
	if c.Readiness.Timeout < c.Readiness.PollInterval {
		return fmt.Errorf("readiness.timeout must be at least one poll interval")
	}

	return nil
}
