package ubershader

import (
	"log/slog"

	"github.com/gogpu/ubershader/gpucore"
)

// SetLogger configures the logger for ubershader and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// SetLogger is safe for concurrent use.
//
// Log levels:
//   - [slog.LevelDebug]: cache hits and misses, compiles, pipelines, skipped lights
//   - [slog.LevelInfo]: lifecycle events (device backup and restore, template reloads)
//   - [slog.LevelWarn]: non-fatal failures (compile and link errors, unavailable variants)
//
// Example:
//
//	ubershader.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	gpucore.SetLogger(l)
}

// Logger returns the current logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return gpucore.Logger()
}
