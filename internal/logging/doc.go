// Package logging constructs slog loggers for kiln: a console handler that
// renders "ts LEVEL component: msg k=v" lines and a JSON handler for
// machine consumption. Components receive loggers by injection and fall back
// to a no-op logger, so library code never writes to ambient output.
package logging
