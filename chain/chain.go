// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain applies blocks of transactions to the pool ledger and keeps the
// resulting blocks, receipts and state in a kv store.
package chain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/cache"
	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/metrics"
	"github.com/poolstake/poold/pool"
	"github.com/poolstake/poold/runtime"
	"github.com/poolstake/poold/state"
	"github.com/poolstake/poold/tx"
)

var (
	logger = log.WithContext("pkg", "chain")

	metricBlockApplyDuration = metrics.LazyLoadHistogram("block_apply_duration_ms", metrics.Bucket10s)
	metricUnbondingPending   = metrics.LazyLoadGaugeVec("unbonding_pending", []string{"kind"})
	metricCacheHitMiss       = metrics.LazyLoadGaugeVec("chain_cache_hit_miss_count", []string{"type", "event"})

	errNotFound = errors.New("not found")
)

// Genesis builds the first block of a chain.
type Genesis interface {
	Build(st *state.State) (*block.Block, error)
}

// Applied is sent to subscribers for every applied block.
type Applied struct {
	Block    *block.Block
	Receipts *BlockReceipts
}

// Chain owns the kv store of a chain. Blocks are applied by one writer at a time;
// readers work on snapshots.
type Chain struct {
	db      kv.Store
	genesis *block.Block
	best    atomic.Pointer[block.Block]
	mu      sync.Mutex

	blocks   *cache.LRU[ledger.Bytes32, *block.Block]
	receipts *cache.LRU[ledger.Bytes32, *BlockReceipts]

	feed  event.Feed
	scope event.SubscriptionScope
}

// emptyGetter reads nothing, for building genesis on a blank state.
var emptyGetter kv.Getter = &struct {
	kv.GetFunc
	kv.HasFunc
	kv.IsNotFoundFunc
}{
	func([]byte) ([]byte, error) { return nil, errNotFound },
	func([]byte) (bool, error) { return false, nil },
	func(err error) bool { return err == errNotFound },
}

// New opens the chain stored in db, initializing it with the genesis block when empty.
// An error is returned when db holds a chain of another genesis.
func New(db kv.Store, gen Genesis, cacheSize int) (*Chain, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	blocks, err := cache.NewLRU[ledger.Bytes32, *block.Block](cacheSize)
	if err != nil {
		return nil, err
	}
	receipts, err := cache.NewLRU[ledger.Bytes32, *BlockReceipts](cacheSize)
	if err != nil {
		return nil, err
	}
	c := &Chain{db: db, blocks: blocks, receipts: receipts}

	genesisID, err := kv.Get(metaBucket.NewGetter(db), genesisKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get genesis id")
	}
	if genesisID == nil {
		if err := c.init(gen); err != nil {
			return nil, err
		}
	} else {
		built, err := gen.Build(state.New(emptyGetter))
		if err != nil {
			return nil, errors.Wrap(err, "build genesis")
		}
		if built.Header().ID() != ledger.Bytes32(genesisID) {
			return nil, errors.Errorf("genesis mismatch: stored %x, built %v", genesisID, built.Header().ID())
		}
		if c.genesis, err = loadBlock(db, built.Header().ID()); err != nil {
			return nil, errors.Wrap(err, "failed to load genesis block")
		}
		best, err := loadBestBlock(db)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load best block")
		}
		c.best.Store(best)
	}
	return c, nil
}

func (c *Chain) init(gen Genesis) error {
	st := state.New(stateBucket.NewGetter(c.db))
	b, err := gen.Build(st)
	if err != nil {
		return errors.Wrap(err, "build genesis")
	}
	id := b.Header().ID()

	bulk := c.db.Bulk()
	if err := st.Stage().Commit(stateBucket.NewPutter(bulk)); err != nil {
		return err
	}
	if err := saveBlock(bulk, b, &BlockReceipts{}); err != nil {
		return err
	}
	if err := metaBucket.NewPutter(bulk).Put(genesisKey, id[:]); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "failed to write genesis")
	}
	c.genesis = b
	c.best.Store(b)
	logger.Info("chain initialized", "genesis", id)
	return nil
}

// GenesisBlock returns the genesis block.
func (c *Chain) GenesisBlock() *block.Block {
	return c.genesis
}

// BestBlock returns the latest applied block.
func (c *Chain) BestBlock() *block.Block {
	return c.best.Load()
}

// ApplyBlock executes txs in a new block on top of the best block, settles the
// unbondings due at timestamp and commits everything in one batch.
func (c *Chain) ApplyBlock(ctx context.Context, timestamp uint64, txs tx.Transactions) (*block.Block, *BlockReceipts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	startTime := time.Now()
	parent := c.best.Load().Header()
	if timestamp <= parent.Timestamp() {
		return nil, nil, errors.Errorf("block timestamp %d not after parent %d", timestamp, parent.Timestamp())
	}

	st := state.New(stateBucket.NewGetter(c.db))
	pools, err := pool.New(st, bank.New(st))
	if err != nil {
		return nil, nil, err
	}
	rt := runtime.New(st, pools, parent.Number()+1, timestamp)

	receipts := &BlockReceipts{Receipts: make(tx.Receipts, 0, len(txs))}
	builder := new(block.Builder).ParentID(parent.ID()).Timestamp(timestamp)
	for _, t := range txs {
		receipts.Receipts = append(receipts.Receipts, rt.ExecuteTransaction(t))
		builder.Transaction(t)
	}
	if receipts.Settled, err = rt.Settle(); err != nil {
		return nil, nil, err
	}

	stage := st.Stage()
	b := builder.StateRoot(stage.Hash()).ReceiptsRoot(receipts.RootHash()).Build()

	bulk := c.db.Bulk()
	if err := stage.Commit(stateBucket.NewPutter(bulk)); err != nil {
		return nil, nil, err
	}
	if err := saveBlock(bulk, b, receipts); err != nil {
		return nil, nil, errors.Wrap(err, "failed to save block")
	}
	if err := bulk.Write(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to write block")
	}

	id := b.Header().ID()
	c.blocks.Add(id, b)
	c.receipts.Add(id, receipts)
	c.best.Store(b)

	if pending, err := pools.PendingUnbondings(); err == nil {
		for kind, n := range pending {
			metricUnbondingPending().SetWithLabel(int64(n), map[string]string{"kind": kind.String()})
		}
	}
	metricBlockApplyDuration().Observe(time.Since(startTime).Milliseconds())
	c.logCacheStats()

	logger.Debug("block applied", "number", b.Header().Number(), "id", id,
		"txs", len(txs), "settled", len(receipts.Settled), "changes", stage.Len())

	c.feed.Send(&Applied{Block: b, Receipts: receipts})
	return b, receipts, nil
}

func (c *Chain) logCacheStats() {
	for name, stats := range map[string]*cache.Stats{"block": c.blocks.Stats(), "receipts": c.receipts.Stats()} {
		if changed, hit, miss := stats.Stats(); changed {
			metricCacheHitMiss().SetWithLabel(hit, map[string]string{"type": name, "event": "hit"})
			metricCacheHitMiss().SetWithLabel(miss, map[string]string{"type": name, "event": "miss"})
		}
	}
}

// IsNotFound returns whether err means the requested item does not exist.
func (c *Chain) IsNotFound(err error) bool {
	return err == errNotFound || c.db.IsNotFound(errors.Cause(err))
}

// GetBlock returns the block by id.
func (c *Chain) GetBlock(id ledger.Bytes32) (*block.Block, error) {
	return c.blocks.GetOrLoad(id, func(id ledger.Bytes32) (*block.Block, error) {
		return loadBlock(c.db, id)
	})
}

// GetBlockIDByNumber returns the id of the block with the number.
func (c *Chain) GetBlockIDByNumber(num uint32) (ledger.Bytes32, error) {
	if num > c.BestBlock().Header().Number() {
		return ledger.Bytes32{}, errNotFound
	}
	return loadBlockID(c.db, numberKey(num), numberBucket)
}

// GetBlockReceipts returns the receipts of the block.
func (c *Chain) GetBlockReceipts(id ledger.Bytes32) (*BlockReceipts, error) {
	return c.receipts.GetOrLoad(id, func(id ledger.Bytes32) (*BlockReceipts, error) {
		var r BlockReceipts
		if err := loadRLP(receiptBucket.NewGetter(c.db), id[:], &r); err != nil {
			return nil, err
		}
		return &r, nil
	})
}

// GetTransactionReceipt returns the receipt of a tx and where it was included.
func (c *Chain) GetTransactionReceipt(txID ledger.Bytes32) (*tx.Receipt, *TxLocation, error) {
	var loc TxLocation
	if err := loadRLP(txBucket.NewGetter(c.db), txID[:], &loc); err != nil {
		return nil, nil, err
	}
	receipts, err := c.GetBlockReceipts(loc.BlockID)
	if err != nil {
		return nil, nil, err
	}
	if loc.Index >= uint64(len(receipts.Receipts)) {
		return nil, nil, errors.Errorf("receipt index %d out of range", loc.Index)
	}
	return receipts.Receipts[loc.Index], &loc, nil
}

// HasTransaction reports whether the tx is already in the chain.
func (c *Chain) HasTransaction(txID ledger.Bytes32) (bool, error) {
	return txBucket.NewGetter(c.db).Has(txID[:])
}

// Subscribe registers ch for applied blocks.
func (c *Chain) Subscribe(ch chan *Applied) event.Subscription {
	return c.scope.Track(c.feed.Subscribe(ch))
}

// Close unsubscribes all subscribers.
func (c *Chain) Close() {
	c.scope.Close()
}
