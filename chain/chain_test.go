// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/boltdb"
	"github.com/poolstake/poold/genesis"
	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/tx"
)

var launch = genesis.DevnetTemplate().LaunchTime

func newTx(typ tx.Type, origin ledger.Address, amount uint64, nonce uint64) *tx.Transaction {
	return tx.NewBuilder(typ).Origin(origin).Pool(0).Amount(ledger.NewAmount(amount)).Nonce(nonce).Build()
}

func newChain(t *testing.T) *Chain {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c, err := New(db, genesis.NewDevnet(), 0)
	require.NoError(t, err)
	return c
}

func balance(t *testing.T, c *Chain, a ledger.Address) string {
	r, err := c.NewReader()
	require.NoError(t, err)
	defer r.Release()
	v, err := r.Bank().Balance(a)
	require.NoError(t, err)
	return v.String()
}

func TestGenesis(t *testing.T) {
	c := newChain(t)
	gen := c.GenesisBlock()
	assert.Equal(t, uint32(0), gen.Header().Number())
	assert.Equal(t, gen.Header().ID(), c.BestBlock().Header().ID())
	assert.Equal(t, "1000000000000000", balance(t, c, "alice"))

	id, err := c.GetBlockIDByNumber(0)
	require.NoError(t, err)
	assert.Equal(t, gen.Header().ID(), id)

	_, err = c.GetBlockIDByNumber(1)
	assert.True(t, c.IsNotFound(err))
}

func TestApplyBlock(t *testing.T) {
	c := newChain(t)

	ch := make(chan *Applied, 1)
	sub := c.Subscribe(ch)
	defer sub.Unsubscribe()

	fund := newTx(tx.TypeFund, "alice", 100, 1)
	bad := newTx(tx.TypeDefund, "bob", 1, 1)
	b, receipts, err := c.ApplyBlock(context.Background(), launch+10, tx.Transactions{fund, bad})
	require.NoError(t, err)

	assert.Equal(t, uint32(1), b.Header().Number())
	assert.Equal(t, c.GenesisBlock().Header().ID(), b.Header().ParentID())
	assert.Equal(t, b.Header().ID(), c.BestBlock().Header().ID())
	require.Len(t, receipts.Receipts, 2)
	assert.False(t, receipts.Receipts[0].Reverted())
	assert.Equal(t, reverts.InsufficientFunderBalance, receipts.Receipts[1].Code)
	assert.Equal(t, receipts.RootHash(), b.Header().ReceiptsRoot())

	select {
	case applied := <-ch:
		assert.Equal(t, b.Header().ID(), applied.Block.Header().ID())
	case <-time.After(time.Second):
		t.Fatal("no block event")
	}

	got, err := c.GetBlock(b.Header().ID())
	require.NoError(t, err)
	assert.Equal(t, b.Header().ID(), got.Header().ID())
	assert.Len(t, got.Transactions(), 2)

	receipt, loc, err := c.GetTransactionReceipt(bad.ID())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loc.Index)
	assert.Equal(t, bad.ID(), receipt.TxID)

	has, err := c.HasTransaction(fund.ID())
	require.NoError(t, err)
	assert.True(t, has)

	r, err := c.NewReader()
	require.NoError(t, err)
	defer r.Release()
	pools, err := r.Pools()
	require.NoError(t, err)
	p, err := pools.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "100", p.TotalFunds.String())
	assert.Equal(t, ledger.Address("alice"), p.LowestFunder)

	_, _, err = c.ApplyBlock(context.Background(), launch+10, nil)
	assert.Error(t, err, "timestamp must increase")
}

func TestReaderIsPinned(t *testing.T) {
	c := newChain(t)
	r, err := c.NewReader()
	require.NoError(t, err)
	defer r.Release()

	_, _, err = c.ApplyBlock(context.Background(), launch+1, tx.Transactions{newTx(tx.TypeFund, "alice", 5, 1)})
	require.NoError(t, err)

	v, err := r.Bank().Balance("alice")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", v.String())
	assert.Equal(t, uint32(0), r.Best().Header().Number())
	assert.Equal(t, "999999999999995", balance(t, c, "alice"))
}

func TestUnbondingSettledByBlocks(t *testing.T) {
	c := newChain(t)
	_, _, err := c.ApplyBlock(context.Background(), launch+1, tx.Transactions{newTx(tx.TypeStake, "bob", 50, 1)})
	require.NoError(t, err)
	_, receipts, err := c.ApplyBlock(context.Background(), launch+2, tx.Transactions{newTx(tx.TypeUnstake, "bob", 50, 2)})
	require.NoError(t, err)
	assert.Empty(t, receipts.Settled)
	assert.Equal(t, "999999999999950", balance(t, c, "bob"))

	// devnet unbonds after 10 seconds
	_, receipts, err = c.ApplyBlock(context.Background(), launch+11, nil)
	require.NoError(t, err)
	assert.Empty(t, receipts.Settled)

	_, receipts, err = c.ApplyBlock(context.Background(), launch+12, nil)
	require.NoError(t, err)
	require.Len(t, receipts.Settled, 1)
	assert.Equal(t, tx.EventUnbondingReleased, receipts.Settled[0].Name)
	assert.Equal(t, "1000000000000000", balance(t, c, "bob"))

	_, receipts, err = c.ApplyBlock(context.Background(), launch+13, nil)
	require.NoError(t, err)
	assert.Empty(t, receipts.Settled)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.db")
	open := func() (kv.StoreCloser, *Chain) {
		db, err := boltdb.New(path)
		require.NoError(t, err)
		c, err := New(db, genesis.NewDevnet(), 0)
		require.NoError(t, err)
		return db, c
	}

	db, c := open()
	b, _, err := c.ApplyBlock(context.Background(), launch+1, tx.Transactions{newTx(tx.TypeFund, "alice", 7, 1)})
	require.NoError(t, err)
	c.Close()
	require.NoError(t, db.Close())

	db, c = open()
	defer db.Close()
	assert.Equal(t, b.Header().ID(), c.BestBlock().Header().ID())
	assert.Equal(t, "999999999999993", balance(t, c, "alice"))

	other := genesis.DevnetTemplate()
	other.Name = "othernet"
	other.LaunchTime++
	gen, err := genesis.NewCustomNet(other)
	require.NoError(t, err)
	_, err = New(db, gen, 0)
	assert.Error(t, err)
}
