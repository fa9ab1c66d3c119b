// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/health"
	"github.com/poolstake/poold/ledger"
)

type testAdmin struct {
	logLevel slog.LevelVar
	apiLogs  atomic.Bool
	health   *health.Health
	handler  http.Handler
}

func newTestAdmin() *testAdmin {
	a := &testAdmin{health: health.New(time.Minute)}
	a.logLevel.Set(slog.LevelInfo)
	a.handler = HTTPHandler(&a.logLevel, &a.apiLogs, a.health)
	return a
}

func (a *testAdmin) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestLogLevel(t *testing.T) {
	a := newTestAdmin()

	rec := a.do(http.MethodGet, "/admin/loglevel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res logLevelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "INFO", res.CurrentLevel)

	rec = a.do(http.MethodPost, "/admin/loglevel", `{"level":"debug"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "DEBUG", res.CurrentLevel)
	assert.Equal(t, slog.LevelDebug, a.logLevel.Level())

	tests := []struct {
		name string
		body string
	}{
		{"unknown level", `{"level":"loud"}`},
		{"unknown field", `{"verbosity":"debug"}`},
		{"not json", `debug`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/admin/loglevel", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, slog.LevelDebug, a.logLevel.Level())
		})
	}

	rec = a.do(http.MethodDelete, "/admin/loglevel", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPILogs(t *testing.T) {
	a := newTestAdmin()

	rec := a.do(http.MethodPost, "/admin/apilogs", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.apiLogs.Load())

	rec = a.do(http.MethodGet, "/admin/apilogs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	a := newTestAdmin()

	rec := a.do(http.MethodGet, "/admin/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	a.health.NewBestBlock(ledger.Bytes32{1}, 3)
	rec = a.do(http.MethodGet, "/admin/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status health.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, uint32(3), status.BlockIngestion.Number)
}
