// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves the HTTP and websocket interface of a node.
package api

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/api/accounts"
	"github.com/poolstake/poold/api/blocks"
	"github.com/poolstake/poold/api/events"
	"github.com/poolstake/poold/api/middleware"
	"github.com/poolstake/poold/api/pools"
	"github.com/poolstake/poold/api/subscriptions"
	"github.com/poolstake/poold/api/transactions"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/eventdb"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/txpool"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins       string
	LogsLimit            uint64
	PoolCacheSize        int
	EnableMetrics        bool
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
}

// New returns the api handler and a function closing the open subscriptions.
// A nil eventDB disables the /events endpoint.
func New(
	c *chain.Chain,
	txPool *txpool.TxPool,
	eventDB *eventdb.EventDB,
	opts Options,
) (http.HandlerFunc, func(), error) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	accounts.New(c).
		Mount(router, "/accounts")
	blocks.New(c).
		Mount(router, "/blocks")
	p, err := pools.New(c, opts.PoolCacheSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create pools api")
	}
	p.Mount(router, "/pools")
	transactions.New(c, txPool).
		Mount(router, "/transactions")
	if eventDB != nil {
		events.New(eventDB, opts.LogsLimit).
			Mount(router, "/events")
	}
	subs := subscriptions.New(c, origins, txPool)
	subs.Mount(router, "/subscriptions")

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger != nil {
		handler = middleware.RequestLoggerMiddleware(logger, opts.EnableReqLogger, opts.SlowQueriesThreshold)(handler)
	}

	// subscriptions hold hijacked conns, which need to be closed
	return handler.ServeHTTP, subs.Close, nil
}
