// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/poolstake/poold/boltdb"
	"github.com/poolstake/poold/eventdb"
	"github.com/poolstake/poold/genesis"
	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/metrics"
)

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".poold")
	}
	return ""
}

// initLogger sets the root logger and returns its adjustable level. The returned closer
// is nil unless logs go to a file.
func initLogger(ctx *cli.Context) (*slog.LevelVar, io.Closer, error) {
	verbosity := ctx.Int(verbosityFlag.Name)
	if verbosity < 0 || verbosity > 5 {
		return nil, nil, errors.Errorf("invalid verbosity %d", verbosity)
	}
	level := new(slog.LevelVar)
	level.Set(log.FromLegacyLevel(verbosity))

	var (
		w        io.Writer = os.Stderr
		useColor           = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		closer   io.Closer
	)
	if path := ctx.String(logFileFlag.Name); path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, file)
		useColor = false
		closer = file
	}

	if ctx.Bool(jsonLogsFlag.Name) {
		log.SetDefault(log.NewLogger(log.JSONHandlerWithLevel(w, level)))
	} else {
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, useColor)))
	}
	return level, closer, nil
}

func loadGenesis(ctx *cli.Context) (*genesis.Genesis, error) {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return genesis.NewDevnet(), nil
	}
	gene, err := genesis.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load genesis %s", path)
	}
	return gene, nil
}

func makeInstanceDir(ctx *cli.Context, gene *genesis.Genesis) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	instanceDir := filepath.Join(dataDir, "instance-"+gene.Name())
	if err := os.MkdirAll(instanceDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", instanceDir)
	}
	return instanceDir, nil
}

func openMainDB(ctx *cli.Context, instanceDir string) (kv.StoreCloser, error) {
	if ctx.Bool(memFlag.Name) {
		return lvldb.NewMem()
	}
	switch engine := strings.ToLower(ctx.String(dbEngineFlag.Name)); engine {
	case "leveldb", "":
		cacheMB := ctx.Int(cacheFlag.Name)
		logger.Debug("cache size(MB)", "size", cacheMB)
		return lvldb.New(filepath.Join(instanceDir, "main.db"), lvldb.Options{
			CacheSize:              cacheMB / 2,
			OpenFilesCacheCapacity: 512,
		})
	case "bolt":
		return boltdb.New(filepath.Join(instanceDir, "main.bolt"))
	default:
		return nil, errors.Errorf("unknown db engine %q", engine)
	}
}

func openEventDB(ctx *cli.Context, instanceDir string) (*eventdb.EventDB, error) {
	if ctx.Bool(memFlag.Name) {
		return eventdb.NewMem()
	}
	return eventdb.New(filepath.Join(instanceDir, "events.db"))
}

// blockCacheSize derives the number of cached blocks from the cache flag.
func blockCacheSize(ctx *cli.Context) int {
	n := ctx.Int(cacheFlag.Name) * 4
	if n < 64 {
		n = 64
	}
	return n
}

func listen(addr string) (net.Listener, string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", errors.Wrapf(err, "listen %s", addr)
	}
	return listener, "http://" + listener.Addr().String() + "/", nil
}

// serve runs srv on listener until ctx is done, then shuts it down.
func serve(ctx context.Context, name string, srv *http.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "%s server", name)
	case <-ctx.Done():
		logger.Info(fmt.Sprintf("stopping %s server...", name))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())
	return &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
