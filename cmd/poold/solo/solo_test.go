// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/test/testchain"
	"github.com/poolstake/poold/tx"
	"github.com/poolstake/poold/txpool"
)

func newSolo(t *testing.T, opts Options) (*testchain.Chain, *txpool.TxPool, *Solo) {
	tc, err := testchain.NewDefault()
	require.NoError(t, err)
	pool := txpool.New(tc.Chain(), txpool.DefaultOptions())
	t.Cleanup(func() {
		pool.Close()
		tc.Close()
	})
	return tc, pool, New(tc.Chain(), pool, opts)
}

func TestPack(t *testing.T) {
	tc, pool, s := newSolo(t, Options{MaxTxsPerBlock: 2})
	genesisTime := tc.GenesisBlock().Header().Timestamp()

	// the clock lags behind the chain
	s.now = func() uint64 { return genesisTime - 100 }

	for _, trx := range []*tx.Transaction{
		tc.NewTx(tx.TypeFund, "alice", 0, "", 10),
		tc.NewTx(tx.TypeStake, "bob", 0, "", 20),
		tc.NewTx(tx.TypeFund, "charlie", 0, "", 30),
	} {
		require.NoError(t, pool.Add(trx))
	}

	b, err := s.Pack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), b.Header().Number())
	assert.Equal(t, genesisTime+1, b.Header().Timestamp())
	assert.Len(t, b.Transactions(), 2)

	s.now = func() uint64 { return genesisTime + 50 }
	require.Eventually(t, func() bool { return pool.Len() == 1 }, time.Second, 10*time.Millisecond)
	b, err = s.Pack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, genesisTime+50, b.Header().Timestamp())
	assert.Len(t, b.Transactions(), 1)
}

func TestRunOnDemand(t *testing.T) {
	tc, pool, s := newSolo(t, Options{OnDemand: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// wait for the subscription before adding
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pool.Add(tc.NewTx(tx.TypeFund, "alice", 0, "", 10)))

	require.Eventually(t, func() bool {
		return tc.Chain().BestBlock().Header().Number() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, tc.Chain().BestBlock().Transactions(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("solo did not stop")
	}
}
