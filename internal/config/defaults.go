package config

const (
	defaultBaseURL               = "http://127.0.0.1:8000"
	defaultRequestTimeout        = 15
	defaultBaselineInterval      = 30
	defaultAggressiveInterval    = 3
	defaultFailureAlertThreshold = 3
	defaultGenerationModel       = "auto"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogDir                = "~/.local/share/kiln/logs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Polling: Polling{
			BaselineInterval:      defaultBaselineInterval,
			AggressiveInterval:    defaultAggressiveInterval,
			FailureAlertThreshold: defaultFailureAlertThreshold,
		},
		Generation: Generation{
			Model: defaultGenerationModel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			LogDir: defaultLogDir,
		},
	}
}
