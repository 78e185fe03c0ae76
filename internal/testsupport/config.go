package testsupport

import (
	"path/filepath"
	"testing"

	"kiln/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp log directory per
// test and short polling intervals. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Server.BaseURL = "http://127.0.0.1:0"
	cfg.Logging.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Polling.BaselineInterval = 2
	cfg.Polling.AggressiveInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBaseURL points the config at the given service URL.
func WithBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Server.BaseURL = url
	}
}

// WithAPIToken sets the bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Server.APIToken = token
	}
}

// WithStopWhenIdle enables idle-stop polling on the test config.
func WithStopWhenIdle() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Polling.StopWhenIdle = true
	}
}
