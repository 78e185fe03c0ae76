// Package config loads, normalizes, and validates kiln's TOML configuration.
// The default location is ~/.config/kiln/config.toml, with ./kiln.toml as a
// project-local fallback.
package config
