package observability

import "log/slog"

const defaultServiceName = "osa-scroller"

// Config configures logging, tracing and metrics.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Mode           Mode

	LogLevel slog.Level
	LogJSON  bool
}

// DefaultConfig returns the CLI defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Mode:        ModeCLI,
		LogLevel:    slog.LevelInfo,
	}
}
