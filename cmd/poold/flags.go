// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for ledger databases",
	}
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "path to a genesis file (json|yaml|toml), if not set, the devnet genesis will be used",
	}
	dbEngineFlag = cli.StringFlag{
		Name:  "db-engine",
		Value: "leveldb",
		Usage: "storage engine of the ledger database (leveldb|bolt)",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Value: 256,
		Usage: "megabytes of ram allocated to the database and block caches",
	}
	memFlag = cli.BoolFlag{
		Name:  "mem",
		Usage: "keep all data in memory, nothing is written to disk",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8669",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiLogsLimitFlag = cli.Uint64Flag{
		Name:  "api-logs-limit",
		Value: 1000,
		Usage: "limit the number of events returned by /events API",
	}
	apiSlowQueriesThresholdFlag = cli.DurationFlag{
		Name:  "api-slow-queries-threshold",
		Usage: "log API requests slower than the threshold, 0 disables",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	blockIntervalFlag = cli.Uint64Flag{
		Name:  "block-interval",
		Value: 10,
		Usage: "block interval of the packer (seconds)",
	}
	onDemandFlag = cli.BoolFlag{
		Name:  "on-demand",
		Usage: "pack a block as soon as there are pending transactions",
	}
	txPoolLimitFlag = cli.IntFlag{
		Name:  "txpool-limit",
		Value: 10000,
		Usage: "set tx limit in pool",
	}
	txPoolLimitPerAccountFlag = cli.IntFlag{
		Name:  "txpool-limit-per-account",
		Value: 64,
		Usage: "set tx limit per account in pool",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	logFileFlag = cli.StringFlag{
		Name:  "log-file",
		Usage: "also write logs to a rotated file",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Value: "yaml",
		Usage: "encoding of the template (json|yaml|toml)",
	}
)
