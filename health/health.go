// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health reports whether the node keeps producing blocks.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
)

type BlockIngestion struct {
	ID        *ledger.Bytes32 `json:"id"`
	Number    uint32          `json:"number"`
	Timestamp *time.Time      `json:"timestamp"`
}

type Status struct {
	Healthy        bool            `json:"healthy"`
	BlockIngestion *BlockIngestion `json:"blockIngestion"`
}

// Health tracks the arrival of new best blocks. The node is healthy while the latest
// block arrived within two block intervals.
type Health struct {
	lock          sync.RWMutex
	newBestBlock  time.Time
	bestBlockID   *ledger.Bytes32
	bestNumber    uint32
	blockInterval time.Duration
	now           func() time.Time
}

func New(blockInterval time.Duration) *Health {
	return &Health{
		blockInterval: blockInterval,
		now:           time.Now,
	}
}

func (h *Health) NewBestBlock(id ledger.Bytes32, number uint32) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.newBestBlock = h.now()
	h.bestBlockID = &id
	h.bestNumber = number
}

func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	status := &Status{
		Healthy: h.bestBlockID != nil && h.now().Sub(h.newBestBlock) <= 2*h.blockInterval,
	}
	if h.bestBlockID != nil {
		ingested := h.newBestBlock
		status.BlockIngestion = &BlockIngestion{
			ID:        h.bestBlockID,
			Number:    h.bestNumber,
			Timestamp: &ingested,
		}
	}
	return status
}

// Follow records the current best block of c and every block applied until ctx is done.
func (h *Health) Follow(ctx context.Context, c *chain.Chain) error {
	ch := make(chan *chain.Applied, 16)
	sub := c.Subscribe(ch)
	defer sub.Unsubscribe()

	best := c.BestBlock().Header()
	h.NewBestBlock(best.ID(), best.Number())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case applied := <-ch:
			header := applied.Block.Header()
			h.NewBestBlock(header.ID(), header.Number())
		}
	}
}
