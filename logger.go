package sr

import (
	"log/slog"

	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/internal/logging"
	"github.com/gogpu/sr/shader"
	"github.com/gogpu/sr/text"
	"github.com/gogpu/sr/texture"
)

// loggerVar stores the active logger. It is safe for concurrent use.
var loggerVar logging.Var

// SetLogger configures the logger for sr and its sub-packages. By default
// sr produces no log output. Pass nil to restore silence.
//
// Log levels used by sr:
//   - [slog.LevelDebug]: per-flush and per-pipeline diagnostics
//   - [slog.LevelInfo]: lifecycle events (controller created, shader reloaded)
//   - [slog.LevelWarn]: sentinel resources substituted for failed loads
//
// Example:
//
//	sr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerVar.Store(l)
	l = loggerVar.Load()
	batch.SetLogger(l)
	shader.SetLogger(l)
	texture.SetLogger(l)
	text.SetLogger(l)
}

// Logger returns the current logger. Backends call it to share the same
// configuration.
func Logger() *slog.Logger {
	return loggerVar.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes l to v if it accepts a logger.
func propagateLogger(v any, l *slog.Logger) {
	if ls, ok := v.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
