// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/pool/unbonding"
	"github.com/poolstake/poold/slot"
	"github.com/poolstake/poold/state"
)

const (
	pool     = ledger.PoolID(3)
	unbondIn = uint64(100)
)

func amt(v uint64) ledger.Amount {
	return ledger.NewAmount(v)
}

type fixture struct {
	svc   *Service
	queue *unbonding.Queue
	bank  *bank.Accounts
}

func setup(t *testing.T, maxStakers uint64) *fixture {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	accs := bank.New(st)
	for _, a := range []ledger.Address{"alice", "bob", "charlie"} {
		require.NoError(t, accs.Mint(a, amt(1000)))
	}
	sctx := slot.NewContext("pool", st)
	q := unbonding.New(sctx, accs)
	return &fixture{
		svc:   New(sctx, accs, q, Config{MaxStakers: maxStakers, UnbondingTime: unbondIn}),
		queue: q,
		bank:  accs,
	}
}

func (f *fixture) balance(t *testing.T, a ledger.Address) string {
	v, err := f.bank.Balance(a)
	require.NoError(t, err)
	return v.String()
}

func TestUnstakeIsDeferred(t *testing.T) {
	f := setup(t, 0)

	_, err := f.svc.Stake(pool, "alice", amt(300), 0)
	require.NoError(t, err)
	ok, err := f.svc.IsStaker(pool, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "700", f.balance(t, "alice"))

	require.NoError(t, f.svc.Unstake(pool, "alice", amt(100), 10))
	held, _, err := f.svc.Get(pool, "alice")
	require.NoError(t, err)
	assert.Equal(t, "200", held.String())
	total, err := f.svc.Total(pool)
	require.NoError(t, err)
	assert.Equal(t, "200", total.String())
	assert.Equal(t, "700", f.balance(t, "alice"))

	settled, err := f.queue.Settle(10 + unbondIn - 1)
	require.NoError(t, err)
	assert.Empty(t, settled)
	assert.Equal(t, "700", f.balance(t, "alice"))

	settled, err = f.queue.Settle(10 + unbondIn)
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, pool, settled[0].PoolID)
	assert.Equal(t, "800", f.balance(t, "alice"))
	assert.Equal(t, "200", f.balance(t, bank.StakingAccount))
}

func TestUnstakeAll(t *testing.T) {
	f := setup(t, 0)
	_, err := f.svc.Stake(pool, "alice", amt(300), 0)
	require.NoError(t, err)

	err = f.svc.Unstake(pool, "alice", amt(301), 0)
	assert.ErrorIs(t, err, reverts.ErrInsufficientStakerBalance)

	require.NoError(t, f.svc.Unstake(pool, "alice", amt(300), 0))
	ok, err := f.svc.IsStaker(pool, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.svc.Unstake(pool, "alice", amt(1), 0)
	assert.ErrorIs(t, err, reverts.ErrInsufficientStakerBalance)
}

func TestStakeInsufficientFunds(t *testing.T) {
	f := setup(t, 0)
	_, err := f.svc.Stake(pool, "alice", amt(2000), 0)
	assert.ErrorIs(t, err, reverts.ErrInsufficientFunds)
	ok, err := f.svc.IsStaker(pool, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStakeEvictsLowest(t *testing.T) {
	f := setup(t, 1)

	_, err := f.svc.Stake(pool, "alice", amt(100), 5)
	require.NoError(t, err)

	_, err = f.svc.Stake(pool, "bob", amt(100), 5)
	assert.ErrorIs(t, err, reverts.ErrStakerListFull)

	evicted, err := f.svc.Stake(pool, "bob", amt(101), 5)
	require.NoError(t, err)
	require.NotNil(t, evicted)
	assert.Equal(t, ledger.Address("alice"), evicted.Account)

	lowest, err := f.svc.Lowest(pool)
	require.NoError(t, err)
	assert.Equal(t, ledger.Address("bob"), lowest)

	// the evicted stake unbonds rather than returning at once
	assert.Equal(t, "900", f.balance(t, "alice"))
	pending, err := f.queue.Pending("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, unbonding.KindStake, pending[0].Kind)
	assert.Equal(t, 5+unbondIn, pending[0].UnlockTime)

	_, err = f.queue.Settle(5 + unbondIn)
	require.NoError(t, err)
	assert.Equal(t, "1000", f.balance(t, "alice"))
}
