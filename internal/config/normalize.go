package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	if c.Generation.Model == "" {
		c.Generation.Model = defaultGenerationModel
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.BaseURL = strings.TrimSpace(c.Server.BaseURL)
	if c.Server.BaseURL != "" && !strings.Contains(c.Server.BaseURL, "://") {
		c.Server.BaseURL = "http://" + c.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.LogDir) == "" {
		return nil
	}
	expanded, err := expandPath(c.Logging.LogDir)
	if err != nil {
		return fmt.Errorf("logging.log_dir: %w", err)
	}
	c.Logging.LogDir = expanded
	return nil
}
