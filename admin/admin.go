// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves the operator endpoints of a node: the log level, request
// logging of the public API and the node health.
package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/health"
	"github.com/poolstake/poold/log"
)

var logger = log.WithContext("pkg", "admin")

type logLevelRequest struct {
	Level string `json:"level"`
}

type logLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

type apiLogsRequest struct {
	Enabled bool `json:"enabled"`
}

var levels = map[string]slog.Level{
	"trace": log.LvlTrace,
	"debug": log.LvlDebug,
	"info":  log.LvlInfo,
	"warn":  log.LvlWarn,
	"error": log.LvlError,
	"crit":  log.LvlCrit,
}

type Admin struct {
	logLevel *slog.LevelVar
	apiLogs  *atomic.Bool
	health   *health.Health
}

// New creates the admin endpoints. A nil health disables /admin/health.
func New(logLevel *slog.LevelVar, apiLogs *atomic.Bool, h *health.Health) *Admin {
	return &Admin{logLevel: logLevel, apiLogs: apiLogs, health: h}
}

func (a *Admin) handleGetLogLevel(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, &logLevelResponse{CurrentLevel: a.logLevel.Level().String()})
}

func (a *Admin) handlePostLogLevel(w http.ResponseWriter, req *http.Request) error {
	var body logLevelRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(err, "body")
	}
	level, ok := levels[body.Level]
	if !ok {
		return utils.BadRequest(errors.Errorf("invalid verbosity level %q", body.Level), "level")
	}
	a.logLevel.Set(level)
	logger.Info("log level changed", "level", level)
	return utils.WriteJSON(w, &logLevelResponse{CurrentLevel: a.logLevel.Level().String()})
}

func (a *Admin) handleGetAPILogs(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, &apiLogsRequest{Enabled: a.apiLogs.Load()})
}

func (a *Admin) handlePostAPILogs(w http.ResponseWriter, req *http.Request) error {
	var body apiLogsRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(err, "body")
	}
	a.apiLogs.Store(body.Enabled)
	logger.Info("api request logging changed", "enabled", body.Enabled)
	return utils.WriteJSON(w, &body)
}

func (a *Admin) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	status := a.health.Status()
	if !status.Healthy {
		w.Header().Set("Content-Type", utils.JSONContentType)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return utils.WriteJSON(w, status)
}

func (a *Admin) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/loglevel").
		Methods(http.MethodGet).
		Name("GET /admin/loglevel").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetLogLevel))
	sub.Path("/loglevel").
		Methods(http.MethodPost).
		Name("POST /admin/loglevel").
		HandlerFunc(utils.WrapHandlerFunc(a.handlePostLogLevel))
	sub.Path("/apilogs").
		Methods(http.MethodGet).
		Name("GET /admin/apilogs").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetAPILogs))
	sub.Path("/apilogs").
		Methods(http.MethodPost).
		Name("POST /admin/apilogs").
		HandlerFunc(utils.WrapHandlerFunc(a.handlePostAPILogs))
	if a.health != nil {
		sub.Path("/health").
			Methods(http.MethodGet).
			Name("GET /admin/health").
			HandlerFunc(utils.WrapHandlerFunc(a.handleGetHealth))
	}
}

// HTTPHandler returns the admin router.
func HTTPHandler(logLevel *slog.LevelVar, apiLogs *atomic.Bool, h *health.Health) http.Handler {
	router := mux.NewRouter()
	New(logLevel, apiLogs, h).Mount(router, "/admin")
	return handlers.CompressHandler(router)
}
