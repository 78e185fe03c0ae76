package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/kiln/config.toml"
		}
		return fmt.Errorf("server.base_url is required. Edit %s (create with 'kiln config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("server.base_url %q is not a valid URL", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.BaselineInterval <= 0 {
		return errors.New("polling.baseline_interval must be a positive number of seconds")
	}
	if c.Polling.AggressiveInterval <= 0 {
		return errors.New("polling.aggressive_interval must be a positive number of seconds")
	}
	if c.Polling.AggressiveInterval > c.Polling.BaselineInterval {
		return errors.New("polling.aggressive_interval must not exceed polling.baseline_interval")
	}
	if c.Polling.FailureAlertThreshold < 0 {
		return errors.New("polling.failure_alert_threshold must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
