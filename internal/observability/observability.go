// Package observability configures the process-wide logging layer.
// Request-level logging is handled separately by the server's middleware.
package observability

import (
	"fmt"
	"log/slog"
	"os"
)

// Instrument installs the default slog logger with the given level and
// output format ("text" or "json"). Must be called before any component
// starts logging.
func Instrument(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
