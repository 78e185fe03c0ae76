package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kiln/internal/client"
	"kiln/internal/config"
	"kiln/internal/logging"
	"kiln/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) newClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	apiClient, err := client.New(cfg.Server.BaseURL, cfg.Server.APIToken,
		client.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("job service client: %w", err)
	}
	return apiClient, nil
}

func (c *commandContext) newStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	apiClient, err := c.newClient()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger()
	if err != nil {
		return nil, err
	}
	return store.New(apiClient, storeOptions(cfg, logger)), nil
}

// storeOptions translates the polling config section into store options.
func storeOptions(cfg *config.Config, logger *slog.Logger) store.Options {
	return store.Options{
		Baseline:     time.Duration(cfg.Polling.BaselineInterval) * time.Second,
		Aggressive:   time.Duration(cfg.Polling.AggressiveInterval) * time.Second,
		StopWhenIdle: cfg.Polling.StopWhenIdle,
		Logger:       logger,
	}
}
