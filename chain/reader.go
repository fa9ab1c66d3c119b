// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/pool"
	"github.com/poolstake/poold/state"
)

// Reader reads the ledger as of one committed block. It must be released.
type Reader struct {
	snapshot kv.Snapshot
	best     *block.Block
	state    *state.State
}

// NewReader pins the latest committed block for reading.
func (c *Chain) NewReader() (*Reader, error) {
	snapshot := c.db.Snapshot()
	best, err := loadBestBlock(snapshot)
	if err != nil {
		snapshot.Release()
		return nil, err
	}
	return &Reader{
		snapshot: snapshot,
		best:     best,
		state:    state.New(stateBucket.NewGetter(snapshot)),
	}, nil
}

// Best returns the block the reader reads at.
func (r *Reader) Best() *block.Block {
	return r.best
}

// Bank returns the balances.
func (r *Reader) Bank() *bank.Accounts {
	return bank.New(r.state)
}

// Pools returns the pool ledger.
func (r *Reader) Pools() (*pool.Pools, error) {
	return pool.New(r.state, r.Bank())
}

// Release releases the pinned snapshot.
func (r *Reader) Release() {
	r.snapshot.Release()
}
