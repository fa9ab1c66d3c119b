// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log wraps the go-ethereum structured logger. Package level loggers created by
// WithContext resolve the root logger at each call, so they follow SetDefault made after
// package initialisation.
package log

import (
	"context"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Levels.
const (
	LvlTrace = ethlog.LevelTrace
	LvlDebug = ethlog.LevelDebug
	LvlInfo  = ethlog.LevelInfo
	LvlWarn  = ethlog.LevelWarn
	LvlError = ethlog.LevelError
	LvlCrit  = ethlog.LevelCrit
)

// Logger writes key/value pair messages.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	With(ctx ...any) Logger
	Enabled(level slog.Level) bool
}

type lazyLogger struct {
	ctx []any
}

// WithContext returns a logger that prefixes every record with ctx.
func WithContext(ctx ...any) Logger {
	return &lazyLogger{ctx: ctx}
}

func (l *lazyLogger) merge(ctx []any) []any {
	if len(l.ctx) == 0 {
		return ctx
	}
	out := make([]any, 0, len(l.ctx)+len(ctx))
	return append(append(out, l.ctx...), ctx...)
}

func (l *lazyLogger) Trace(msg string, ctx ...any) { ethlog.Root().Trace(msg, l.merge(ctx)...) }
func (l *lazyLogger) Debug(msg string, ctx ...any) { ethlog.Root().Debug(msg, l.merge(ctx)...) }
func (l *lazyLogger) Info(msg string, ctx ...any)  { ethlog.Root().Info(msg, l.merge(ctx)...) }
func (l *lazyLogger) Warn(msg string, ctx ...any)  { ethlog.Root().Warn(msg, l.merge(ctx)...) }
func (l *lazyLogger) Error(msg string, ctx ...any) { ethlog.Root().Error(msg, l.merge(ctx)...) }
func (l *lazyLogger) Crit(msg string, ctx ...any)  { ethlog.Root().Crit(msg, l.merge(ctx)...) }

func (l *lazyLogger) With(ctx ...any) Logger {
	return &lazyLogger{ctx: l.merge(ctx)}
}

func (l *lazyLogger) Enabled(level slog.Level) bool {
	return ethlog.Root().Enabled(context.Background(), level)
}

// Root returns the root logger.
func Root() ethlog.Logger {
	return ethlog.Root()
}

// SetDefault sets the root logger.
func SetDefault(l ethlog.Logger) {
	ethlog.SetDefault(l)
}

// NewLogger creates a logger writing to h.
func NewLogger(h slog.Handler) ethlog.Logger {
	return ethlog.NewLogger(h)
}

// FromLegacyLevel maps verbosity 0 (crit) .. 5 (trace) to a level.
func FromLegacyLevel(verbosity int) slog.Level {
	return ethlog.FromLegacyLevel(verbosity)
}
