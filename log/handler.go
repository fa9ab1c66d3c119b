// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

const termTimeFormat = "01-02|15:04:05.000"

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (h *discardHandler) WithGroup(_ string) slog.Handler               { return h }
func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler          { return h }

// TerminalHandler formats records for humans:
//
//	INFO [10-17|20:58:45.123] funded pool    pkg=funders pool=1 amount=100
//
// The level is read from lvl on every record, so changes to it apply at once.
type TerminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      *slog.LevelVar
	useColor bool
	attrs    []slog.Attr

	buf []byte
}

// NewTerminalHandlerWithLevel returns a terminal handler dropping records below lvl.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl *slog.LevelVar, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		wr:       wr,
		lvl:      lvl,
		useColor: useColor,
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.format(h.buf[:0], r)
	_, err := h.wr.Write(buf)
	h.buf = buf[:0]
	return err
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl.Level()
}

func (h *TerminalHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *TerminalHandler) format(buf []byte, r slog.Record) []byte {
	lvl := alignedLevel(r.Level)
	if color := levelColor(r.Level); h.useColor && color != 0 {
		buf = fmt.Appendf(buf, "\x1b[%dm%s\x1b[0m", color, lvl)
	} else {
		buf = append(buf, lvl...)
	}
	buf = append(buf, " ["...)
	buf = r.Time.AppendFormat(buf, termTimeFormat)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	if pad := 40 - len(r.Message); pad > 0 && (len(h.attrs) > 0 || r.NumAttrs() > 0) {
		buf = append(buf, bytes.Repeat([]byte{' '}, pad)...)
	}
	write := func(a slog.Attr) {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = appendValue(buf, replaceValue(a).Value)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	return append(buf, '\n')
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, termTimeFormat)
	default:
		return append(buf, v.String()...)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' || r > '~' {
			return true
		}
	}
	return false
}

// JSONHandlerWithLevel returns a handler writing one JSON object per record, dropping
// records below level.
func JSONHandlerWithLevel(wr io.Writer, level *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceJSON,
		Level:       level,
	})
}

func replaceJSON(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		return slog.Attr{Key: "t", Value: attr.Value}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.String("lvl", levelString(l))
		}
	}
	return replaceValue(attr)
}

// replaceValue renders amounts and other stringers by their String method.
func replaceValue(attr slog.Attr) slog.Attr {
	switch v := attr.Value.Any().(type) {
	case time.Time:
		return attr
	case *uint256.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.Dec())
		}
	case fmt.Stringer:
		if v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()) {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	}
	return attr
}

func levelString(l slog.Level) string {
	switch {
	case l >= LvlCrit:
		return "crit"
	case l >= LvlError:
		return "error"
	case l >= LvlWarn:
		return "warn"
	case l >= LvlInfo:
		return "info"
	case l >= LvlDebug:
		return "debug"
	default:
		return "trace"
	}
}

func alignedLevel(l slog.Level) string {
	switch {
	case l >= LvlCrit:
		return "CRIT "
	case l >= LvlError:
		return "ERROR"
	case l >= LvlWarn:
		return "WARN "
	case l >= LvlInfo:
		return "INFO "
	case l >= LvlDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

func levelColor(l slog.Level) int {
	switch {
	case l >= LvlCrit:
		return 35
	case l >= LvlError:
		return 31
	case l >= LvlWarn:
		return 33
	case l >= LvlInfo:
		return 32
	case l >= LvlDebug:
		return 36
	default:
		return 34
	}
}
