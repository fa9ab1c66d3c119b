// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package solo packs pending transactions into blocks on a single node.
package solo

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/co"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/tx"
	"github.com/poolstake/poold/txpool"
)

var logger = log.WithContext("pkg", "solo")

type Options struct {
	// OnDemand packs a block as soon as transactions are pending, instead of on
	// every BlockInterval boundary.
	OnDemand       bool
	BlockInterval  uint64
	MaxTxsPerBlock int
}

// TxPool is the source of the transactions to pack.
type TxPool interface {
	Executables() tx.Transactions
	SubscribeTxEvent(ch chan *txpool.TxEvent) event.Subscription
}

// Solo is the block producer of a standalone node.
type Solo struct {
	chain   *chain.Chain
	txPool  TxPool
	options Options
	now     func() uint64
}

// New returns the producer.
func New(c *chain.Chain, txPool TxPool, options Options) *Solo {
	if options.BlockInterval == 0 {
		options.BlockInterval = 1
	}
	return &Solo{
		chain:   c,
		txPool:  txPool,
		options: options,
		now:     func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Run packs blocks until ctx is done.
func (s *Solo) Run(ctx context.Context) error {
	var goes co.Goes
	defer goes.Wait()

	logger.Info("prepared to pack block", "on-demand", s.options.OnDemand, "interval", s.options.BlockInterval)

	if s.options.OnDemand {
		var sig co.Signal
		ch := make(chan *txpool.TxEvent, 16)
		sub := s.txPool.SubscribeTxEvent(ch)
		defer sub.Unsubscribe()

		goes.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ch:
					sig.Signal()
				case <-sub.Err():
					return
				}
			}
		})
		s.onDemandLoop(ctx, sig.NewWaiter())
	} else {
		s.intervalLoop(ctx)
	}
	logger.Info("stopping packing service......")
	return nil
}

func (s *Solo) intervalLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.now()%s.options.BlockInterval == 0 {
				if _, err := s.Pack(ctx); err != nil {
					logger.Error("failed to pack block", "err", err)
				}
			}
		}
	}
}

func (s *Solo) onDemandLoop(ctx context.Context, waiter co.Waiter) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-waiter.C():
			if _, err := s.Pack(ctx); err != nil {
				logger.Error("failed to pack block", "err", err)
			}
		}
	}
}

// Pack applies a block holding the executable transactions. The block time is the
// wall clock, bumped past the best block when the clock lags behind.
func (s *Solo) Pack(ctx context.Context) (*block.Block, error) {
	txs := s.txPool.Executables()
	if limit := s.options.MaxTxsPerBlock; limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	timestamp := s.now()
	if best := s.chain.BestBlock().Header().Timestamp(); timestamp <= best {
		timestamp = best + 1
	}

	b, receipts, err := s.chain.ApplyBlock(ctx, timestamp, txs)
	if err != nil {
		return nil, err
	}
	var reverted int
	for _, r := range receipts.Receipts {
		if r.Reverted() {
			reverted++
		}
	}
	logger.Info("📦 new block packed",
		"number", b.Header().Number(),
		"id", b.Header().ID(),
		"txs", len(txs),
		"reverted", reverted,
		"settled", len(receipts.Settled),
	)
	return b, nil
}
