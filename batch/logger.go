package batch

import (
	"log/slog"

	"github.com/gogpu/sr/internal/logging"
)

var logger logging.Var

// SetLogger sets the logger used for flush diagnostics. nil silences it.
func SetLogger(l *slog.Logger) { logger.Store(l) }

func slogger() *slog.Logger { return logger.Load() }
