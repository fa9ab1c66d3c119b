// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/genesis"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/tx"
)

func newDB(t *testing.T) *EventDB {
	db, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFilter(t *testing.T) {
	db := newDB(t)
	assert.NotEmpty(t, db.SQLiteVersion())

	header := new(block.Builder).Timestamp(100).Build().Header()
	txID := ledger.Blake2b([]byte("tx"))
	var events []*Event
	for i := range 20 {
		ev := &tx.Event{
			Name:    tx.EventFunded,
			PoolID:  ledger.PoolID(i % 2),
			Account: "alice",
			Amount:  ledger.NewAmount(uint64(i + 1)),
		}
		if i%5 == 0 {
			ev.Name = tx.EventDelegated
			ev.Account = "bob"
			ev.Staker = "charlie"
		}
		events = append(events, NewEvent(header, 0, &txID, ev))
		header = new(block.Builder).ParentID(header.ID()).Timestamp(header.Timestamp() + 10).Build().Header()
	}
	events[19].TxID = nil
	require.NoError(t, db.Insert(events))

	all, err := db.Filter(nil)
	require.NoError(t, err)
	require.Len(t, all, 20)
	assert.Equal(t, events[3].BlockID, all[3].BlockID)
	assert.Equal(t, "4", all[3].Amount.String())
	assert.Equal(t, txID, *all[3].TxID)
	assert.Nil(t, all[19].TxID)

	pool1 := ledger.PoolID(1)
	got, err := db.Filter(&Filter{PoolID: &pool1})
	require.NoError(t, err)
	assert.Len(t, got, 10)

	charlie := ledger.Address("charlie")
	got, err = db.Filter(&Filter{Account: &charlie, Order: DESC})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, uint32(15), got[0].BlockNumber)

	got, err = db.Filter(&Filter{
		Name:    tx.EventFunded,
		Range:   &Range{Unit: Block, From: 0, To: 9},
		Options: &Options{Offset: 1, Limit: 3},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint32{2, 3, 4}, []uint32{got[0].BlockNumber, got[1].BlockNumber, got[2].BlockNumber})

	got, err = db.Filter(&Filter{Range: &Range{Unit: Time, From: 150, To: 170}})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	last, found, err := db.LastBlockNumber()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(19), last)
}

func TestFollow(t *testing.T) {
	kvdb, err := lvldb.NewMem()
	require.NoError(t, err)
	defer kvdb.Close()
	c, err := chain.New(kvdb, genesis.NewDevnet(), 0)
	require.NoError(t, err)
	defer c.Close()

	fund := func(nonce uint64) tx.Transactions {
		return tx.Transactions{tx.NewBuilder(tx.TypeFund).Origin("alice").Pool(0).Amount(ledger.NewAmount(1)).Nonce(nonce).Build()}
	}
	ts := c.BestBlock().Header().Timestamp()
	// indexed by catching up
	_, _, err = c.ApplyBlock(context.Background(), ts+1, fund(1))
	require.NoError(t, err)

	db := newDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- db.Follow(ctx, c) }()

	assert.Eventually(t, func() bool {
		last, found, err := db.LastBlockNumber()
		return err == nil && found && last == 1
	}, time.Second, 10*time.Millisecond)

	_, _, err = c.ApplyBlock(context.Background(), ts+2, fund(2))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		last, _, err := db.LastBlockNumber()
		return err == nil && last == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	alice := ledger.Address("alice")
	events, err := db.Filter(&Filter{Account: &alice})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, tx.EventFunded, events[0].Name)
	assert.NotNil(t, events[0].TxID)
}

func TestFilterMatch(t *testing.T) {
	pool := ledger.PoolID(1)
	bob := ledger.Address("bob")
	ev := &Event{Event: tx.Event{Name: tx.EventDelegated, PoolID: 1, Account: "alice", Staker: "bob"}}

	assert.True(t, (&Filter{}).Match(ev))
	assert.True(t, (&Filter{PoolID: &pool, Account: &bob, Name: tx.EventDelegated}).Match(ev))
	assert.False(t, (&Filter{Name: tx.EventFunded}).Match(ev))
	other := ledger.PoolID(2)
	assert.False(t, (&Filter{PoolID: &other}).Match(ev))
}
