// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/state"
)

const (
	alice   = ledger.Address("alice")
	bob     = ledger.Address("bob")
	charlie = ledger.Address("charlie")
)

func amt(v uint64) ledger.Amount {
	return ledger.NewAmount(v)
}

type testLedger struct {
	t     *testing.T
	st    *state.State
	bank  *bank.Accounts
	pools *Pools
}

func newTestLedger(t *testing.T, params Params) *testLedger {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	require.NoError(t, StoreParams(st, params))
	accs := bank.New(st)
	for _, a := range []ledger.Address{alice, bob, charlie} {
		require.NoError(t, accs.Mint(a, amt(1000)))
	}
	pools, err := New(st, accs)
	require.NoError(t, err)
	require.NoError(t, pools.CreatePool(0, "moontest"))
	return &testLedger{t: t, st: st, bank: accs, pools: pools}
}

// run executes fn under a checkpoint the way the runtime does and returns its result code.
func (l *testLedger) run(fn func(p *Pools) error) reverts.Code {
	cp := l.st.NewCheckpoint()
	err := fn(l.pools)
	if err != nil {
		l.st.RevertTo(cp)
	}
	return reverts.CodeOf(err)
}

func (l *testLedger) balance(a ledger.Address) string {
	v, err := l.bank.Balance(a)
	require.NoError(l.t, err)
	return v.String()
}

func (l *testLedger) pool() *Pool {
	p, err := l.pools.Get(0)
	require.NoError(l.t, err)
	require.NotNil(l.t, p)
	return p
}

// checkTotals asserts the aggregate totals equal the sums of the entries.
func (l *testLedger) checkTotals() {
	p := l.pool()
	sum := func(entries []Entry) ledger.Amount {
		var s ledger.Amount
		for _, e := range entries {
			s, _ = s.Add(e.Amount)
		}
		return s
	}
	assert.Equal(l.t, sum(p.Funders).String(), p.TotalFunds.String())
	assert.Equal(l.t, sum(p.Stakers).String(), p.TotalStake.String())
	if len(p.Funders) > 0 {
		assert.Equal(l.t, p.Funders[0].Account, p.LowestFunder)
	} else {
		assert.Empty(l.t, p.LowestFunder)
	}
	if len(p.Stakers) > 0 {
		assert.Equal(l.t, p.Stakers[0].Account, p.LowestStaker)
	} else {
		assert.Empty(l.t, p.LowestStaker)
	}
}

func TestFundDefundSequence(t *testing.T) {
	l := newTestLedger(t, DefaultParams())

	assert.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Fund(0, alice, amt(80)) }))
	assert.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Fund(0, alice, amt(20)) }))
	funders, err := l.pools.FundersList(0)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Account: alice, PoolID: 0, Amount: amt(100)}}, funders)
	l.checkTotals()

	assert.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Defund(0, alice, amt(80)) }))
	assert.Equal(t, "20", l.pool().TotalFunds.String())

	assert.Equal(t, reverts.InsufficientFunderBalance, l.run(func(p *Pools) error { return p.Defund(0, alice, amt(50)) }))
	assert.Equal(t, "20", l.pool().TotalFunds.String())
	assert.Equal(t, "980", l.balance(alice))

	assert.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Defund(0, alice, amt(20)) }))
	p := l.pool()
	assert.Equal(t, "0", p.TotalFunds.String())
	assert.Empty(t, p.Funders)
	assert.Equal(t, ledger.Address(""), p.LowestFunder)
	assert.Equal(t, "1000", l.balance(alice))
}

func TestHandlerValidation(t *testing.T) {
	l := newTestLedger(t, DefaultParams())

	assert.Equal(t, reverts.PoolNotFound, l.run(func(p *Pools) error { return p.Fund(7, alice, amt(1)) }))
	assert.Equal(t, reverts.PoolNotFound, l.run(func(p *Pools) error { return p.Delegate(7, alice, bob, amt(1)) }))
	assert.Equal(t, reverts.PoolNotFound, l.run(func(p *Pools) error {
		_, err := p.WithdrawRewards(7, alice, bob)
		return err
	}))
	assert.Equal(t, reverts.InvalidAmount, l.run(func(p *Pools) error { return p.Stake(0, alice, amt(0), 0) }))

	assert.Equal(t, reverts.InsufficientFunds, l.run(func(p *Pools) error { return p.Fund(0, alice, amt(1001)) }))
	assert.Equal(t, reverts.InsufficientFunds, l.run(func(p *Pools) error { return p.Stake(0, alice, amt(1001), 0) }))
	assert.Equal(t, reverts.InsufficientStakerBalance, l.run(func(p *Pools) error { return p.Unstake(0, alice, amt(1), 0) }))
	assert.Equal(t, reverts.StakerNotFound, l.run(func(p *Pools) error { return p.Delegate(0, alice, bob, amt(1)) }))
	assert.Equal(t, reverts.InsufficientDelegation, l.run(func(p *Pools) error { return p.Undelegate(0, alice, bob, amt(1), 0) }))

	assert.Equal(t, "1000", l.balance(alice))
	p := l.pool()
	assert.Empty(t, p.Funders)
	assert.Empty(t, p.Stakers)

	ok, err := l.pools.Exists(7)
	require.NoError(t, err)
	assert.False(t, ok)
	missing, err := l.pools.Get(7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSelfDelegation(t *testing.T) {
	l := newTestLedger(t, DefaultParams())
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Stake(0, alice, amt(100), 0) }))

	assert.Equal(t, reverts.SelfDelegationForbidden, l.run(func(p *Pools) error { return p.Delegate(0, alice, alice, amt(10)) }))
	assert.Equal(t, "900", l.balance(alice))
	assert.True(t, l.pool().TotalDelegation.IsZero())
	d, err := l.pools.DelegationPoolData(0, alice)
	require.NoError(t, err)
	assert.False(t, d.Exists())
}

func TestDelegationLifecycle(t *testing.T) {
	params := DefaultParams()
	params.UnbondingDelegationTime = 10
	l := newTestLedger(t, params)

	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Stake(0, alice, amt(100), 0) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Delegate(0, alice, bob, amt(100)) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Delegate(0, alice, charlie, amt(300)) }))

	d, err := l.pools.DelegationPoolData(0, alice)
	require.NoError(t, err)
	assert.Equal(t, "400", d.TotalDelegation.String())
	assert.Equal(t, uint64(2), d.DelegatorCount)
	assert.Equal(t, "0", d.CurrentRewards.String())
	assert.Equal(t, "400", l.pool().TotalDelegation.String())

	info, err := l.pools.Delegator(0, alice, bob)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "100", info.Amount.String())

	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Undelegate(0, alice, bob, amt(100), 100) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Undelegate(0, alice, charlie, amt(300), 100) }))

	d, err = l.pools.DelegationPoolData(0, alice)
	require.NoError(t, err)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_rewards":"0","delegator_count":"0","id":"0","latest_index_k":"0",
		"latest_index_was_undelegation":false,"staker":"","total_delegation":"0"}`, string(raw))
	assert.Equal(t, "0", l.pool().TotalDelegation.String())

	info, err = l.pools.Delegator(0, alice, bob)
	require.NoError(t, err)
	assert.Nil(t, info)

	pending, err := l.pools.Unbondings(bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(110), pending[0].UnlockTime)

	assert.Equal(t, "900", l.balance(bob))
	_, err = l.pools.Settle(110)
	require.NoError(t, err)
	assert.Equal(t, "1000", l.balance(bob))
	assert.Equal(t, "1000", l.balance(charlie))
}

func TestUnstakeDeferredUntilSettle(t *testing.T) {
	params := DefaultParams()
	params.UnbondingStakingTime = 10
	l := newTestLedger(t, params)

	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Stake(0, bob, amt(300), 0) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Unstake(0, bob, amt(300), 5) }))

	p := l.pool()
	assert.Empty(t, p.Stakers)
	assert.Equal(t, "0", p.TotalStake.String())
	assert.Equal(t, ledger.Address(""), p.LowestStaker)
	assert.Equal(t, "700", l.balance(bob))

	pending, err := l.pools.PendingUnbondings()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pending[1])

	settled, err := l.pools.Settle(14)
	require.NoError(t, err)
	assert.Empty(t, settled)
	assert.Equal(t, "700", l.balance(bob))

	settled, err = l.pools.Settle(15)
	require.NoError(t, err)
	assert.Len(t, settled, 1)
	assert.Equal(t, "1000", l.balance(bob))

	// settling again is a no-op
	settled, err = l.pools.Settle(15)
	require.NoError(t, err)
	assert.Empty(t, settled)
	assert.Equal(t, "1000", l.balance(bob))
}

func TestCapacity(t *testing.T) {
	params := DefaultParams()
	params.MaxFunders = 2
	params.MaxStakers = 2
	l := newTestLedger(t, params)
	assert.Equal(t, params, l.pools.Params())

	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Fund(0, alice, amt(10)) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Fund(0, bob, amt(20)) }))
	assert.Equal(t, reverts.FunderListFull, l.run(func(p *Pools) error { return p.Fund(0, charlie, amt(10)) }))
	assert.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Fund(0, charlie, amt(11)) }))
	assert.Equal(t, ledger.Address("charlie"), l.pool().LowestFunder)
	assert.Equal(t, "1000", l.balance(alice))

	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Stake(0, alice, amt(10), 0) }))
	require.Equal(t, reverts.OK, l.run(func(p *Pools) error { return p.Stake(0, bob, amt(20), 0) }))
	assert.Equal(t, reverts.StakerListFull, l.run(func(p *Pools) error { return p.Stake(0, charlie, amt(5), 0) }))
	l.checkTotals()
}

func TestPoolsList(t *testing.T) {
	l := newTestLedger(t, DefaultParams())
	require.NoError(t, l.pools.CreatePool(4, "other"))
	assert.Error(t, l.pools.CreatePool(4, "again"))

	ids, err := l.pools.IDs()
	require.NoError(t, err)
	assert.Equal(t, []ledger.PoolID{0, 4}, ids)

	list, err := l.pools.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "other", list[1].Name)

	raw, err := json.Marshal(list[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"4","name":"other","total_funds":"0","total_stake":"0","total_delegation":"0",
		"lowest_funder":"","lowest_staker":"","funders":[],"stakers":[]}`, string(raw))
}

// checkDelegations asserts each staker's delegation equals the sum of its delegators
// and the pool's delegation equals the sum over its stakers.
func (l *testLedger) checkDelegations(accounts []ledger.Address) {
	var pool ledger.Amount
	for _, s := range accounts {
		d, err := l.pools.DelegationPoolData(0, s)
		require.NoError(l.t, err)
		var sum ledger.Amount
		for _, a := range accounts {
			del, err := l.pools.Delegator(0, s, a)
			require.NoError(l.t, err)
			if del != nil {
				sum, _ = sum.Add(del.Amount)
			}
		}
		assert.Equal(l.t, sum.String(), d.TotalDelegation.String(), "delegation to %s", s)
		pool, _ = pool.Add(d.TotalDelegation)
	}
	assert.Equal(l.t, pool.String(), l.pool().TotalDelegation.String(), "pool delegation")
}

// random handler calls must keep the totals consistent and never move funds on failure
func TestRandomHandlers(t *testing.T) {
	params := DefaultParams()
	params.MaxFunders = 2
	params.MaxStakers = 2
	params.Authorities = []ledger.Address{alice}
	l := newTestLedger(t, params)
	rnd := rand.New(rand.NewPCG(7, 11))
	accounts := []ledger.Address{alice, bob, charlie}

	supply := func() string {
		var s ledger.Amount
		for _, a := range append(accounts, bank.FundingAccount, bank.StakingAccount, bank.DelegationAccount) {
			v, err := l.bank.Balance(a)
			require.NoError(t, err)
			s, _ = s.Add(v)
		}
		return s.String()
	}
	want := supply()

	for i := range 600 {
		now := uint64(i)
		a := accounts[rnd.IntN(len(accounts))]
		b := accounts[rnd.IntN(len(accounts))]
		c := accounts[rnd.IntN(len(accounts))]
		v := amt(uint64(rnd.IntN(200)))
		before := l.balance(a)

		code := l.run(func(p *Pools) error {
			switch rnd.IntN(10) {
			case 0:
				return p.Fund(0, a, v)
			case 1:
				return p.Defund(0, a, v)
			case 2:
				return p.Stake(0, a, v, now)
			case 3:
				return p.Unstake(0, a, v, now)
			case 4:
				return p.Delegate(0, a, b, v)
			case 5:
				return p.Undelegate(0, a, b, v, now)
			case 6:
				return p.PayoutRewards(0, a, b, v)
			case 7:
				_, err := p.WithdrawRewards(0, a, b)
				return err
			case 8:
				return p.Redelegate(0, a, c, b, v, now)
			default:
				_, err := p.Settle(now)
				return err
			}
		})
		require.NotEqual(t, reverts.Internal, code)
		if code != reverts.OK {
			assert.Equal(t, before, l.balance(a))
		}
		l.checkTotals()
		l.checkDelegations(accounts)
		assert.Equal(t, want, supply())
	}
}
