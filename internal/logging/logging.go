// Package logging holds the silent-by-default slog plumbing shared by sr and
// its sub-packages.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return nop }

// Var is an atomically replaceable logger. The zero value logs nothing.
type Var struct {
	p atomic.Pointer[slog.Logger]
}

// Load returns the current logger.
func (v *Var) Load() *slog.Logger {
	if l := v.p.Load(); l != nil {
		return l
	}
	return nop
}

// Store replaces the logger. nil restores the silent logger.
func (v *Var) Store(l *slog.Logger) {
	if l == nil {
		l = nop
	}
	v.p.Store(l)
}
