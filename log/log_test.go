// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level int) *bytes.Buffer {
	prev := Root()
	t.Cleanup(func() { SetDefault(prev) })

	var lvl slog.LevelVar
	lvl.Set(FromLegacyLevel(level))

	buf := &bytes.Buffer{}
	SetDefault(NewLogger(JSONHandlerWithLevel(buf, &lvl)))
	return buf
}

func TestWithContextFollowsRoot(t *testing.T) {
	// created before the root is replaced
	logger := WithContext("pkg", "test")

	buf := captureLogs(t, 3)
	logger.Info("funded pool", "pool", 1)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "funded pool", rec["msg"])
	assert.Equal(t, "test", rec["pkg"])
	assert.Equal(t, float64(1), rec["pool"])
}

func TestWith(t *testing.T) {
	buf := captureLogs(t, 4)
	logger := WithContext("pkg", "test").With("pool", 2)

	assert.True(t, logger.Enabled(LvlDebug))
	assert.False(t, logger.Enabled(LvlTrace))

	logger.Debug("staked", "amount", "100")
	out := buf.String()
	assert.Contains(t, out, `"pkg":"test"`)
	assert.Contains(t, out, `"pool":2`)
	assert.Contains(t, out, `"amount":"100"`)
}

func TestDiscardHandler(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	SetDefault(NewLogger(DiscardHandler()))
	WithContext("pkg", "test").Error("nothing")
	assert.False(t, WithContext().Enabled(LvlCrit))
}

func TestJSONHandlerFollowsLevelVar(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var lvl slog.LevelVar
	lvl.Set(LvlInfo)
	buf := &bytes.Buffer{}
	SetDefault(NewLogger(JSONHandlerWithLevel(buf, &lvl)))

	logger := WithContext("pkg", "test")
	logger.Debug("hidden")
	lvl.Set(LvlDebug)
	logger.Debug("shown")

	out := buf.String()
	assert.NotContains(t, out, `"msg":"hidden"`)
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"lvl":"debug"`)
}

func TestTerminalHandler(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var lvl slog.LevelVar
	lvl.Set(LvlWarn)
	buf := &bytes.Buffer{}
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(buf, &lvl, false)))

	logger := WithContext("pkg", "test")
	logger.Info("hidden")
	logger.Warn("low balance", "account", "bob", "note", "two words")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "WARN ["))
	assert.Contains(t, lines[0], "low balance")
	assert.Contains(t, lines[0], " pkg=test account=bob")
	assert.Contains(t, lines[0], `note="two words"`)

	lvl.Set(LvlInfo)
	logger.Info("shown")
	assert.Contains(t, buf.String(), "INFO ")
}
