package shader

import (
	"log/slog"

	"github.com/gogpu/sr/internal/logging"
)

var logger logging.Var

// SetLogger sets the logger for compile failures and reloads. nil silences it.
func SetLogger(l *slog.Logger) { logger.Store(l) }

func slogger() *slog.Logger { return logger.Load() }
