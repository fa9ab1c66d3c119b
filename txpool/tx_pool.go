// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/co"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/tx"
)

var logger = log.WithContext("pkg", "txpool")

// Options options for tx pool.
type Options struct {
	Limit           int
	LimitPerAccount int
	MaxLifetime     time.Duration
}

// DefaultOptions returns the options used by the node.
func DefaultOptions() Options {
	return Options{
		Limit:           10000,
		LimitPerAccount: 64,
		MaxLifetime:     20 * time.Minute,
	}
}

// TxEvent will be posted when a tx is added.
type TxEvent struct {
	Tx *tx.Transaction
}

// TxPool maintains unprocessed transactions.
type TxPool struct {
	options Options
	chain   *chain.Chain
	all     *txObjectMap

	ctx    context.Context
	cancel func()
	txFeed event.Feed
	scope  event.SubscriptionScope
	goes   co.Goes
}

// New create a new TxPool instance.
// Close is required to be called at end.
func New(c *chain.Chain, options Options) *TxPool {
	ctx, cancel := context.WithCancel(context.Background())
	pool := &TxPool{
		options: options,
		chain:   c,
		all:     newTxObjectMap(),
		ctx:     ctx,
		cancel:  cancel,
	}

	applied := make(chan *chain.Applied, 16)
	sub := c.Subscribe(applied)
	pool.goes.Go(func() {
		defer sub.Unsubscribe()
		pool.housekeeping(applied, sub.Err())
	})
	return pool
}

func (p *TxPool) housekeeping(applied <-chan *chain.Applied, subErr <-chan error) {
	logger.Debug("enter housekeeping")
	defer logger.Debug("leave housekeeping")

	ticker := time.NewTicker(time.Second * 10)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-subErr:
			return
		case a := <-applied:
			removed := 0
			for _, t := range a.Block.Transactions() {
				if p.all.Remove(t.ID()) {
					removed++
				}
			}
			if removed > 0 {
				metricTxPoolGauge().Set(int64(p.all.Len()))
				logger.Trace("packed txs removed", "count", removed, "block", a.Block.Header().Number())
			}
		case <-ticker.C:
			p.wash(time.Now().UnixNano())
		}
	}
}

// wash drops txs that stayed longer than MaxLifetime.
func (p *TxPool) wash(now int64) int {
	if p.options.MaxLifetime <= 0 {
		return 0
	}
	removed := 0
	for _, obj := range p.all.ToTxObjects() {
		if now > obj.timeAdded+int64(p.options.MaxLifetime) && p.all.Remove(obj.ID()) {
			removed++
			logger.Trace("tx washed out", "id", obj.ID(), "err", "out of lifetime")
		}
	}
	if removed > 0 {
		metricTxPoolGauge().Set(int64(p.all.Len()))
	}
	return removed
}

// Close cleanup inner go routines.
func (p *TxPool) Close() {
	p.cancel()
	p.scope.Close()
	p.goes.Wait()
	logger.Debug("closed")
}

// SubscribeTxEvent receivers will receive added txs.
func (p *TxPool) SubscribeTxEvent(ch chan *TxEvent) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

// Add adds a new tx into pool.
// It's not assumed as an error if the tx to be added is already in the pool.
func (p *TxPool) Add(newTx *tx.Transaction) (err error) {
	defer func() {
		if err != nil {
			reason := "rejected"
			if IsBadTx(err) {
				reason = "bad"
			} else if IsErrKnownTx(err) {
				reason = "known"
			}
			metricBadTxCount().AddWithLabel(1, map[string]string{"reason": reason})
		}
	}()

	if p.all.Contains(newTx.ID()) {
		return nil
	}
	if err := newTx.Validate(); err != nil {
		return badTxError{err.Error()}
	}
	known, err := p.chain.HasTransaction(newTx.ID())
	if err != nil {
		return err
	}
	if known {
		return errKnownTx
	}
	if p.options.Limit > 0 && p.all.Len() >= p.options.Limit {
		return txRejectedError{"pool is full"}
	}

	added, err := p.all.Add(newTx, p.options.LimitPerAccount)
	if err != nil {
		return txRejectedError{err.Error()}
	}
	if !added {
		return nil
	}
	metricTxPoolGauge().Set(int64(p.all.Len()))
	logger.Trace("tx added", "id", newTx.ID(), "type", newTx.Type())
	p.goes.Go(func() {
		p.txFeed.Send(&TxEvent{newTx})
	})
	return nil
}

// Get get pooled tx by id.
func (p *TxPool) Get(id ledger.Bytes32) *tx.Transaction {
	if obj := p.all.Get(id); obj != nil {
		return obj.Transaction
	}
	return nil
}

// Remove removes tx from pool by its id.
func (p *TxPool) Remove(id ledger.Bytes32) bool {
	if p.all.Remove(id) {
		metricTxPoolGauge().Set(int64(p.all.Len()))
		logger.Debug("tx removed", "id", id)
		return true
	}
	return false
}

// Executables returns the txs to pack, in arrival order.
func (p *TxPool) Executables() tx.Transactions {
	return p.all.ToTxs()
}

// Len returns the number of pooled txs.
func (p *TxPool) Len() int {
	return p.all.Len()
}
