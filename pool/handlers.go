// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/pool/unbonding"
)

// The handlers below validate their input before mutating anything. A failing handler
// may still leave partial writes behind; callers run each one under a state checkpoint
// and revert on error.

func (p *Pools) check(id ledger.PoolID, amount ledger.Amount) error {
	ok, err := p.Exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return reverts.New(reverts.PoolNotFound, "pool %d does not exist", id)
	}
	if amount.IsZero() {
		return reverts.New(reverts.InvalidAmount, "amount must be positive")
	}
	return nil
}

// Fund commits amount of the funder's balance to the pool.
func (p *Pools) Fund(id ledger.PoolID, funder ledger.Address, amount ledger.Amount) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	_, err := p.funders.Fund(id, funder, amount)
	return err
}

// Defund returns amount of the funder's commitment to its balance.
func (p *Pools) Defund(id ledger.PoolID, funder ledger.Address, amount ledger.Amount) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	return p.funders.Defund(id, funder, amount)
}

// Stake stakes amount of the staker's balance into the pool.
func (p *Pools) Stake(id ledger.PoolID, staker ledger.Address, amount ledger.Amount, now uint64) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	_, err := p.stakers.Stake(id, staker, amount, now)
	return err
}

// Unstake starts unbonding amount of the staker's stake.
func (p *Pools) Unstake(id ledger.PoolID, staker ledger.Address, amount ledger.Amount, now uint64) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	return p.stakers.Unstake(id, staker, amount, now)
}

// Delegate delegates amount of the delegator's balance to a staker of the pool.
func (p *Pools) Delegate(id ledger.PoolID, staker, delegator ledger.Address, amount ledger.Amount) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	return p.delegation.Delegate(id, staker, delegator, amount)
}

// Undelegate starts unbonding amount of the delegator's delegation to the staker.
func (p *Pools) Undelegate(id ledger.PoolID, staker, delegator ledger.Address, amount ledger.Amount, now uint64) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	return p.delegation.Undelegate(id, staker, delegator, amount, now)
}

func (p *Pools) authorize(account ledger.Address) error {
	if !p.params.IsAuthority(account) {
		return reverts.New(reverts.Unauthorized, "%s is not a pool authority", account)
	}
	return nil
}

// PayoutRewards pays amount from the payer to the delegators of the staker. Only
// authorities pay out rewards.
func (p *Pools) PayoutRewards(id ledger.PoolID, staker, payer ledger.Address, amount ledger.Amount) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	if err := p.authorize(payer); err != nil {
		return err
	}
	return p.delegation.PayoutRewards(id, staker, payer, amount)
}

// Redelegate moves amount of the delegator's delegation from one staker of the pool
// to another without unbonding, consuming one redelegation spell.
func (p *Pools) Redelegate(id ledger.PoolID, from, to, delegator ledger.Address, amount ledger.Amount, now uint64) error {
	if err := p.check(id, amount); err != nil {
		return err
	}
	return p.delegation.Redelegate(id, from, to, delegator, amount, now)
}

// Slash cuts the delegation to the staker by fraction, scaled by 1e18, on behalf of
// an authority. It returns the amount sent to the treasury.
func (p *Pools) Slash(id ledger.PoolID, staker, authority ledger.Address, fraction ledger.Amount) (ledger.Amount, error) {
	if err := p.check(id, fraction); err != nil {
		return ledger.Amount{}, err
	}
	if err := p.authorize(authority); err != nil {
		return ledger.Amount{}, err
	}
	return p.delegation.Slash(id, staker, fraction)
}

// WithdrawRewards pays out the delegator's rewards from the staker and returns them.
func (p *Pools) WithdrawRewards(id ledger.PoolID, staker, delegator ledger.Address) (ledger.Amount, error) {
	ok, err := p.Exists(id)
	if err != nil {
		return ledger.Amount{}, err
	}
	if !ok {
		return ledger.Amount{}, reverts.New(reverts.PoolNotFound, "pool %d does not exist", id)
	}
	return p.delegation.WithdrawRewards(id, staker, delegator)
}

// Settle releases every unbonding due at now. Settling twice for the same time
// releases nothing the second time.
func (p *Pools) Settle(now uint64) ([]*unbonding.Item, error) {
	settled, err := p.unbonding.Settle(now)
	if err != nil {
		return nil, err
	}
	if len(settled) > 0 {
		logger.Debug("unbondings settled", "count", len(settled), "time", now)
	}
	return settled, nil
}

// PendingUnbondings returns the number of queued releases of each kind.
func (p *Pools) PendingUnbondings() (map[unbonding.Kind]uint64, error) {
	out := make(map[unbonding.Kind]uint64, len(unbonding.Kinds))
	for _, k := range unbonding.Kinds {
		n, err := p.unbonding.Len(k)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}
