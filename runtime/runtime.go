// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime executes transactions against the pool ledger, one at a time and each
// under its own state checkpoint.
package runtime

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/metrics"
	"github.com/poolstake/poold/pool"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/state"
	"github.com/poolstake/poold/tx"
)

var (
	logger = log.WithContext("pkg", "runtime")

	metricTxResults = metrics.LazyLoadCounterVec("tx_results_count", []string{"type", "code"})
	metricSettled   = metrics.LazyLoadCounterVec("unbonding_settled_count", []string{"kind"})
)

// Runtime is to support transaction execution.
type Runtime struct {
	state *state.State
	pools *pool.Pools

	// block env
	blockNumber uint32
	blockTime   uint64
}

// New create a Runtime object.
func New(st *state.State, pools *pool.Pools, blockNumber uint32, blockTime uint64) *Runtime {
	return &Runtime{
		state:       st,
		pools:       pools,
		blockNumber: blockNumber,
		blockTime:   blockTime,
	}
}

func (rt *Runtime) State() *state.State { return rt.state }
func (rt *Runtime) Pools() *pool.Pools   { return rt.pools }
func (rt *Runtime) BlockNumber() uint32  { return rt.blockNumber }
func (rt *Runtime) BlockTime() uint64    { return rt.blockTime }

// ExecuteTransaction executes the tx and returns its receipt. A failing tx leaves no
// trace in state; its receipt carries the failure code.
func (rt *Runtime) ExecuteTransaction(trx *tx.Transaction) *tx.Receipt {
	receipt := &tx.Receipt{TxID: trx.ID()}

	checkpoint := rt.state.NewCheckpoint()
	events, err := rt.execute(trx)
	if err != nil {
		rt.state.RevertTo(checkpoint)
		receipt.Code = reverts.CodeOf(err)
		receipt.Reason = err.Error()
		if receipt.Code == reverts.Internal {
			logger.Error("transaction failed", "id", receipt.TxID, "type", trx.Type(), "err", err)
		} else {
			logger.Debug("transaction reverted", "id", receipt.TxID, "code", receipt.Code, "reason", receipt.Reason)
		}
	} else {
		receipt.Events = events
	}

	metricTxResults().AddWithLabel(1, map[string]string{"type": trx.Type().String(), "code": receipt.Code.String()})
	return receipt
}

func (rt *Runtime) execute(trx *tx.Transaction) ([]*tx.Event, error) {
	if err := trx.Validate(); err != nil {
		return nil, reverts.New(reverts.UnknownTransaction, "%v", err)
	}

	var (
		p      = rt.pools
		id     = trx.PoolID()
		origin = trx.Origin()
		staker = trx.Staker()
		amount = trx.Amount()
		name   string
		err    error
	)
	if trx.Type() == tx.TypeRedelegate {
		if err := p.Redelegate(id, staker, trx.Target(), origin, amount, rt.blockTime); err != nil {
			return nil, err
		}
		return []*tx.Event{
			{Name: tx.EventRedelegatedFrom, PoolID: id, Account: origin, Staker: staker, Amount: amount},
			{Name: tx.EventRedelegatedTo, PoolID: id, Account: origin, Staker: trx.Target(), Amount: amount},
		}, nil
	}
	switch trx.Type() {
	case tx.TypeFund:
		name, err = tx.EventFunded, p.Fund(id, origin, amount)
	case tx.TypeDefund:
		name, err = tx.EventDefunded, p.Defund(id, origin, amount)
	case tx.TypeStake:
		name, err = tx.EventStaked, p.Stake(id, origin, amount, rt.blockTime)
	case tx.TypeUnstake:
		name, err = tx.EventUnstaked, p.Unstake(id, origin, amount, rt.blockTime)
	case tx.TypeDelegate:
		name, err = tx.EventDelegated, p.Delegate(id, staker, origin, amount)
	case tx.TypeUndelegate:
		name, err = tx.EventUndelegated, p.Undelegate(id, staker, origin, amount, rt.blockTime)
	case tx.TypePayoutRewards:
		name, err = tx.EventRewardsPaid, p.PayoutRewards(id, staker, origin, amount)
	case tx.TypeWithdrawRewards:
		name = tx.EventRewardsWithdrawn
		amount, err = p.WithdrawRewards(id, staker, origin)
	case tx.TypeSlash:
		name = tx.EventSlashed
		amount, err = p.Slash(id, staker, origin, amount)
	default:
		return nil, reverts.ErrUnknownTransaction
	}
	if err != nil {
		return nil, err
	}
	return []*tx.Event{{
		Name:    name,
		PoolID:  id,
		Account: origin,
		Staker:  staker,
		Amount:  amount,
	}}, nil
}

// Settle releases the unbondings due at the block time and returns an event per release.
func (rt *Runtime) Settle() ([]*tx.Event, error) {
	items, err := rt.pools.Settle(rt.blockTime)
	if err != nil {
		return nil, errors.Wrap(err, "failed to settle unbondings")
	}
	events := make([]*tx.Event, 0, len(items))
	for _, item := range items {
		events = append(events, &tx.Event{
			Name:    tx.EventUnbondingReleased,
			PoolID:  item.PoolID,
			Account: item.Account,
			Staker:  item.Staker,
			Amount:  item.Amount,
		})
		metricSettled().AddWithLabel(1, map[string]string{"kind": item.Kind.String()})
	}
	return events, nil
}
