// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/poolstake/poold/admin"
	"github.com/poolstake/poold/api"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/cmd/poold/solo"
	"github.com/poolstake/poold/genesis"
	"github.com/poolstake/poold/health"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/metrics"
	"github.com/poolstake/poold/txpool"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "poold",
		Usage:   "Pool staking, delegation and funding ledger node",
		Flags: []cli.Flag{
			dataDirFlag,
			genesisFlag,
			dbEngineFlag,
			cacheFlag,
			memFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiLogsLimitFlag,
			apiSlowQueriesThresholdFlag,
			enableAPILogsFlag,
			blockIntervalFlag,
			onDemandFlag,
			txPoolLimitFlag,
			txPoolLimitPerAccountFlag,
			verbosityFlag,
			jsonLogsFlag,
			logFileFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:   "genesis-template",
				Usage:  "print a sample genesis file",
				Flags:  []cli.Flag{formatFlag},
				Action: genesisTemplateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func genesisTemplateAction(ctx *cli.Context) error {
	return genesis.Encode(os.Stdout, genesis.DevnetTemplate(), genesis.Format(ctx.String(formatFlag.Name)))
}

func defaultAction(ctx *cli.Context) error {
	logLevel, logCloser, err := initLogger(ctx)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	defer func() { logger.Info("exited") }()

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	gene, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	instanceDir := "Memory"
	if !ctx.Bool(memFlag.Name) {
		if instanceDir, err = makeInstanceDir(ctx, gene); err != nil {
			return err
		}
	}

	mainDB, err := openMainDB(ctx, instanceDir)
	if err != nil {
		return errors.Wrap(err, "open main database")
	}
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	eventDB, err := openEventDB(ctx, instanceDir)
	if err != nil {
		return errors.Wrap(err, "open event database")
	}
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	c, err := chain.New(mainDB, gene, blockCacheSize(ctx))
	if err != nil {
		return err
	}
	defer c.Close()

	txPool := txpool.New(c, txpool.Options{
		Limit:           ctx.Int(txPoolLimitFlag.Name),
		LimitPerAccount: ctx.Int(txPoolLimitPerAccountFlag.Name),
		MaxLifetime:     20 * time.Minute,
	})
	defer func() { logger.Info("closing tx pool..."); txPool.Close() }()

	var enableReqLogger atomic.Bool
	enableReqLogger.Store(ctx.Bool(enableAPILogsFlag.Name))
	handler, closeSubs, err := api.New(c, txPool, eventDB, api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		LogsLimit:            ctx.Uint64(apiLogsLimitFlag.Name),
		PoolCacheSize:        blockCacheSize(ctx),
		EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
		EnableReqLogger:      &enableReqLogger,
		SlowQueriesThreshold: ctx.Duration(apiSlowQueriesThresholdFlag.Name),
	})
	if err != nil {
		return err
	}
	defer closeSubs()

	apiListener, apiURL, err := listen(ctx.String(apiAddrFlag.Name))
	if err != nil {
		return err
	}
	apiSrv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}

	exitCtx := handleExitSignal()
	g, gctx := errgroup.WithContext(exitCtx)

	g.Go(func() error { return serve(gctx, "API", apiSrv, apiListener) })
	if ctx.Bool(enableMetricsFlag.Name) {
		metricsListener, metricsURL, err := listen(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			apiListener.Close()
			return err
		}
		logger.Info("metrics server started", "url", metricsURL+"metrics")
		g.Go(func() error { return serve(gctx, "metrics", newMetricsServer(), metricsListener) })
	}
	if ctx.Bool(enableAdminFlag.Name) {
		adminListener, adminURL, err := listen(ctx.String(adminAddrFlag.Name))
		if err != nil {
			apiListener.Close()
			return err
		}
		nodeHealth := health.New(time.Duration(ctx.Uint64(blockIntervalFlag.Name)) * time.Second)
		adminSrv := &http.Server{
			Handler:           admin.HTTPHandler(logLevel, &enableReqLogger, nodeHealth),
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
		}
		logger.Info("admin server started", "url", adminURL+"admin")
		g.Go(func() error { return nodeHealth.Follow(gctx, c) })
		g.Go(func() error { return serve(gctx, "admin", adminSrv, adminListener) })
	}
	g.Go(func() error { return eventDB.Follow(gctx, c) })
	g.Go(func() error {
		return solo.New(c, txPool, solo.Options{
			OnDemand:      ctx.Bool(onDemandFlag.Name),
			BlockInterval: ctx.Uint64(blockIntervalFlag.Name),
		}).Run(gctx)
	})

	best := c.BestBlock().Header()
	logger.Info("node started",
		"genesis", gene.Name(),
		"genesisID", c.GenesisBlock().Header().ID(),
		"best", best.Number(),
		"instance", instanceDir,
		"api", apiURL,
	)
	return g.Wait()
}
