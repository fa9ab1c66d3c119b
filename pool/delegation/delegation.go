// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package delegation implements delegation of funds to the stakers of a pool and the
// distribution of staker rewards to delegators.
package delegation

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/pool/unbonding"
	"github.com/poolstake/poold/slot"
)

var logger = log.WithContext("pkg", "delegation")

// StakerSet tells whether an account actively stakes in a pool.
type StakerSet interface {
	IsStaker(pool ledger.PoolID, account ledger.Address) (bool, error)
}

// Config holds the delegation parameters.
type Config struct {
	// UnbondingTime delays the release of undelegated funds, in seconds.
	UnbondingTime uint64
	// RedelegationCooldown is how long a redelegation spell stays used, in seconds.
	RedelegationCooldown uint64
	// RedelegationMaxAmount is the number of spells of a delegator. Zero disables
	// redelegation.
	RedelegationMaxAmount uint64
}

// Ledger is the delegation ledger of all pools.
type Ledger struct {
	bank    bank.Bank
	queue   *unbonding.Queue
	stakers StakerSet
	dist    Distribution
	cfg     Config

	records    *slot.Mapping[slot.Composite, *PoolData]
	delegators *slot.Mapping[slot.Composite, *Delegator]
	totals     *slot.Mapping[ledger.PoolID, ledger.Amount]
	spells     *slot.Mapping[ledger.Address, []uint64]
}

// New creates the ledger. A nil dist selects F1.
func New(sctx *slot.Context, b bank.Bank, queue *unbonding.Queue, stakers StakerSet, dist Distribution, cfg Config) *Ledger {
	if dist == nil {
		dist = NewF1(sctx)
	}
	return &Ledger{
		bank:       b,
		queue:      queue,
		stakers:    stakers,
		dist:       dist,
		cfg:        cfg,
		records:    slot.NewMapping[slot.Composite, *PoolData](sctx, "delegation/records"),
		delegators: slot.NewMapping[slot.Composite, *Delegator](sctx, "delegation/delegators"),
		totals:     slot.NewMapping[ledger.PoolID, ledger.Amount](sctx, "delegation/totals"),
		spells:     slot.NewMapping[ledger.Address, []uint64](sctx, "delegation/spells"),
	}
}

// Data returns the delegation record of the staker, or the zero record when the staker
// has no delegators.
func (l *Ledger) Data(pool ledger.PoolID, staker ledger.Address) (*PoolData, error) {
	d, err := l.records.Get(slot.Keys(pool, staker))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegation record")
	}
	return d, nil
}

func (l *Ledger) setData(d *PoolData) error {
	key := slot.Keys(d.ID, d.Staker)
	if d.DelegatorCount == 0 && d.TotalDelegation.IsZero() {
		if err := l.dist.Purge(d); err != nil {
			return err
		}
		l.records.Delete(key)
		return nil
	}
	if err := l.records.Set(key, d); err != nil {
		return errors.Wrap(err, "failed to set delegation record")
	}
	return nil
}

// Delegator returns the delegator entry, with a zero amount when absent.
func (l *Ledger) Delegator(pool ledger.PoolID, staker, delegator ledger.Address) (*Delegator, error) {
	del, err := l.delegators.Get(slot.Keys(pool, staker, delegator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegator")
	}
	return del, nil
}

func (l *Ledger) setDelegator(del *Delegator) error {
	key := slot.Keys(del.PoolID, del.Staker, del.Delegator)
	if del.Amount.IsZero() {
		l.delegators.Delete(key)
		return nil
	}
	if err := l.delegators.Set(key, del); err != nil {
		return errors.Wrap(err, "failed to set delegator")
	}
	return nil
}

// PoolTotal returns the delegation of all stakers of the pool.
func (l *Ledger) PoolTotal(pool ledger.PoolID) (ledger.Amount, error) {
	total, err := l.totals.Get(pool)
	if err != nil {
		return ledger.Amount{}, errors.Wrap(err, "failed to get pool delegation")
	}
	return total, nil
}

func (l *Ledger) addPoolTotal(pool ledger.PoolID, amount ledger.Amount, sub bool) error {
	total, err := l.PoolTotal(pool)
	if err != nil {
		return err
	}
	if sub {
		total, err = total.Sub(amount)
	} else {
		total, err = total.Add(amount)
	}
	if err != nil {
		return errors.Wrap(err, "pool delegation")
	}
	if total.IsZero() {
		l.totals.Delete(pool)
		return nil
	}
	return l.totals.Set(pool, total)
}

// claim opens a new period and moves the delegator's earned rewards out of the
// distribution. Slashes since the delegator entered are applied to its amount. The
// delegator no longer holds a period reference afterwards.
func (l *Ledger) claim(d *PoolData, del *Delegator) (ledger.Amount, error) {
	if err := l.dist.OpenPeriod(d); err != nil {
		return ledger.Amount{}, err
	}
	if !del.Exists() {
		return ledger.Amount{}, nil
	}
	reward, err := l.dist.Earned(d, del)
	if err != nil {
		return ledger.Amount{}, err
	}
	current, err := l.dist.Current(d, del)
	if err != nil {
		return ledger.Amount{}, err
	}
	if err := l.dist.Exit(d, del.KIndex); err != nil {
		return ledger.Amount{}, err
	}
	del.Amount = current
	if !reward.IsZero() {
		if err := bank.Transfer(l.bank, bank.DelegationAccount, del.Delegator, reward); err != nil {
			return ledger.Amount{}, errors.Wrap(err, "failed to pay rewards")
		}
		logger.Debug("rewards paid", "pool", d.ID, "staker", d.Staker, "delegator", del.Delegator, "amount", reward)
	}
	return reward, nil
}

// sweep sends what slashing rounding left in the delegation of a staker without
// delegators to the treasury.
func (l *Ledger) sweep(d *PoolData) error {
	if d.DelegatorCount > 0 || d.TotalDelegation.IsZero() {
		return nil
	}
	dust := d.TotalDelegation
	if err := bank.Transfer(l.bank, bank.DelegationAccount, bank.TreasuryAccount, dust); err != nil {
		return errors.Wrap(err, "failed to sweep delegation")
	}
	d.TotalDelegation = ledger.Amount{}
	return l.addPoolTotal(d.ID, dust, true)
}

// current returns the delegator entry with slashes applied to its amount.
func (l *Ledger) current(pool ledger.PoolID, staker, delegator ledger.Address) (*PoolData, *Delegator, error) {
	d, err := l.Data(pool, staker)
	if err != nil {
		return nil, nil, err
	}
	del, err := l.Delegator(pool, staker, delegator)
	if err != nil {
		return nil, nil, err
	}
	if !del.Exists() || !d.Exists() {
		return d, del, nil
	}
	view := *del
	if view.Amount, err = l.dist.Current(d, del); err != nil {
		return nil, nil, err
	}
	return d, &view, nil
}

// CurrentAmount returns the delegation of the delegator after slashes.
func (l *Ledger) CurrentAmount(pool ledger.PoolID, staker, delegator ledger.Address) (ledger.Amount, error) {
	_, del, err := l.current(pool, staker, delegator)
	if err != nil {
		return ledger.Amount{}, err
	}
	return del.Amount, nil
}

// add delegates amount already held by the delegation account.
func (l *Ledger) add(pool ledger.PoolID, staker, delegator ledger.Address, amount ledger.Amount) error {
	d, err := l.Data(pool, staker)
	if err != nil {
		return err
	}
	if !d.Exists() {
		d = &PoolData{ID: pool, Staker: staker}
	}
	del, err := l.Delegator(pool, staker, delegator)
	if err != nil {
		return err
	}
	if !del.Exists() {
		del = &Delegator{PoolID: pool, Staker: staker, Delegator: delegator}
		d.DelegatorCount++
	}

	if _, err := l.claim(d, del); err != nil {
		return err
	}
	d.LatestIndexWasUndelegation = false

	if del.Amount, err = del.Amount.Add(amount); err != nil {
		return err
	}
	if del.KIndex, err = l.dist.Enter(d); err != nil {
		return err
	}
	if d.TotalDelegation, err = d.TotalDelegation.Add(amount); err != nil {
		return err
	}
	if err := l.addPoolTotal(pool, amount, false); err != nil {
		return err
	}
	if err := l.setDelegator(del); err != nil {
		return err
	}
	return l.setData(d)
}

// remove takes amount out of the delegation, leaving it in the delegation account.
func (l *Ledger) remove(d *PoolData, del *Delegator, amount ledger.Amount) error {
	if _, err := l.claim(d, del); err != nil {
		return err
	}
	d.LatestIndexWasUndelegation = true

	var err error
	if del.Amount, err = del.Amount.Sub(amount); err != nil {
		return err
	}
	if del.Exists() {
		if del.KIndex, err = l.dist.Enter(d); err != nil {
			return err
		}
	} else {
		d.DelegatorCount--
	}
	if d.TotalDelegation, err = d.TotalDelegation.Sub(amount); err != nil {
		return errors.Wrap(err, "staker delegation")
	}
	if err := l.addPoolTotal(d.ID, amount, true); err != nil {
		return err
	}
	if err := l.sweep(d); err != nil {
		return err
	}
	if err := l.setDelegator(del); err != nil {
		return err
	}
	return l.setData(d)
}

// Delegate moves amount from the delegator to the staker's delegation. Rewards the
// delegator earned so far are paid out first.
func (l *Ledger) Delegate(pool ledger.PoolID, staker, delegator ledger.Address, amount ledger.Amount) error {
	if staker == delegator {
		return reverts.New(reverts.SelfDelegationForbidden, "%s cannot delegate to itself", delegator)
	}
	ok, err := l.stakers.IsStaker(pool, staker)
	if err != nil {
		return err
	}
	if !ok {
		return reverts.New(reverts.StakerNotFound, "%s is not a staker of pool %d", staker, pool)
	}

	if err := bank.Transfer(l.bank, delegator, bank.DelegationAccount, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			return reverts.New(reverts.InsufficientFunds, "insufficient funds to delegate %s", amount)
		}
		return err
	}
	return l.add(pool, staker, delegator, amount)
}

// Undelegate withdraws amount from the staker's delegation at block time now. Earned
// rewards are paid out at once; the amount is released after the unbonding time.
func (l *Ledger) Undelegate(pool ledger.PoolID, staker, delegator ledger.Address, amount ledger.Amount, now uint64) error {
	d, del, err := l.current(pool, staker, delegator)
	if err != nil {
		return err
	}
	if !del.Exists() || del.Amount.Cmp(amount) < 0 {
		return reverts.New(reverts.InsufficientDelegation,
			"%s delegated %s to %s in pool %d, cannot undelegate %s", delegator, del.Amount, staker, pool, amount)
	}
	if !d.Exists() {
		return errors.Errorf("delegator %s of %s has no delegation record", delegator, staker)
	}
	// claim applies the slashes again from the stored entry
	if del, err = l.Delegator(pool, staker, delegator); err != nil {
		return err
	}
	if err := l.remove(d, del, amount); err != nil {
		return err
	}

	_, err = l.queue.Enqueue(unbonding.Item{
		Kind:       unbonding.KindDelegation,
		Account:    delegator,
		Amount:     amount,
		PoolID:     pool,
		Staker:     staker,
		UnlockTime: now + l.cfg.UnbondingTime,
	})
	return err
}

// consumeSpell uses one of the delegator's redelegation spells at time now. A spell is
// used again once the cooldown passed, and at most one is cast per block.
func (l *Ledger) consumeSpell(delegator ledger.Address, now uint64) error {
	spells, err := l.spells.Get(delegator)
	if err != nil {
		return errors.Wrap(err, "failed to get redelegation spells")
	}
	active := spells[:0]
	for _, t := range spells {
		if t+l.cfg.RedelegationCooldown > now {
			active = append(active, t)
		}
	}
	for _, t := range active {
		if t == now {
			return reverts.New(reverts.RedelegationOnCooldown, "%s already redelegated in this block", delegator)
		}
	}
	if uint64(len(active)) >= l.cfg.RedelegationMaxAmount {
		return reverts.New(reverts.RedelegationOnCooldown, "all redelegation spells of %s are on cooldown", delegator)
	}
	return l.spells.Set(delegator, append(active, now))
}

// Redelegate moves amount of the delegation from one staker of the pool to another
// without unbonding. Rewards earned with both stakers are paid out.
func (l *Ledger) Redelegate(pool ledger.PoolID, from, to, delegator ledger.Address, amount ledger.Amount, now uint64) error {
	d, del, err := l.current(pool, from, delegator)
	if err != nil {
		return err
	}
	if !del.Exists() {
		return reverts.New(reverts.NotADelegator, "%s does not delegate to %s in pool %d", delegator, from, pool)
	}
	if to == delegator {
		return reverts.New(reverts.SelfDelegationForbidden, "%s cannot delegate to itself", delegator)
	}
	ok, err := l.stakers.IsStaker(pool, to)
	if err != nil {
		return err
	}
	if !ok {
		return reverts.New(reverts.StakerNotFound, "%s is not a staker of pool %d", to, pool)
	}
	if del.Amount.Cmp(amount) < 0 {
		return reverts.New(reverts.InsufficientDelegation,
			"%s delegated %s to %s in pool %d, cannot redelegate %s", delegator, del.Amount, from, pool, amount)
	}
	if err := l.consumeSpell(delegator, now); err != nil {
		return err
	}

	if del, err = l.Delegator(pool, from, delegator); err != nil {
		return err
	}
	if err := l.remove(d, del, amount); err != nil {
		return err
	}
	if err := l.add(pool, to, delegator, amount); err != nil {
		return err
	}
	logger.Debug("redelegated", "pool", pool, "from", from, "to", to, "delegator", delegator, "amount", amount)
	return nil
}

// PayoutRewards moves amount from the payer into the rewards of the staker's delegators.
func (l *Ledger) PayoutRewards(pool ledger.PoolID, staker, payer ledger.Address, amount ledger.Amount) error {
	d, err := l.Data(pool, staker)
	if err != nil {
		return err
	}
	if !d.Exists() {
		return reverts.New(reverts.NoDelegation, "%s has no delegation in pool %d", staker, pool)
	}
	if err := bank.Transfer(l.bank, payer, bank.DelegationAccount, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			return reverts.New(reverts.InsufficientFunds, "insufficient funds to pay %s", amount)
		}
		return err
	}
	if d.CurrentRewards, err = d.CurrentRewards.Add(amount); err != nil {
		return err
	}
	return l.setData(d)
}

// Slash cuts the delegation of every delegator of the staker by fraction, scaled by
// RewardScale, and sends the cut to the treasury. A staker without
// delegators is left alone. It returns the amount cut.
func (l *Ledger) Slash(pool ledger.PoolID, staker ledger.Address, fraction ledger.Amount) (ledger.Amount, error) {
	if fraction.IsZero() || fraction.Cmp(RewardScale) >= 0 {
		return ledger.Amount{}, reverts.New(reverts.InvalidAmount, "slash fraction %s out of range", fraction)
	}
	d, err := l.Data(pool, staker)
	if err != nil {
		return ledger.Amount{}, err
	}
	if !d.Exists() {
		return ledger.Amount{}, nil
	}
	cut, err := l.dist.Slash(d, fraction)
	if err != nil {
		return ledger.Amount{}, err
	}
	if !cut.IsZero() {
		if err := bank.Transfer(l.bank, bank.DelegationAccount, bank.TreasuryAccount, cut); err != nil {
			return ledger.Amount{}, errors.Wrap(err, "failed to move slashed delegation")
		}
		if err := l.addPoolTotal(pool, cut, true); err != nil {
			return ledger.Amount{}, err
		}
	}
	if err := l.setData(d); err != nil {
		return ledger.Amount{}, err
	}
	logger.Debug("delegators slashed", "pool", pool, "staker", staker, "fraction", fraction, "amount", cut)
	return cut, nil
}

// WithdrawRewards pays the delegator's earned rewards and returns the amount paid.
func (l *Ledger) WithdrawRewards(pool ledger.PoolID, staker, delegator ledger.Address) (ledger.Amount, error) {
	del, err := l.Delegator(pool, staker, delegator)
	if err != nil {
		return ledger.Amount{}, err
	}
	if !del.Exists() {
		return ledger.Amount{}, reverts.New(reverts.NotADelegator,
			"%s does not delegate to %s in pool %d", delegator, staker, pool)
	}
	d, err := l.Data(pool, staker)
	if err != nil {
		return ledger.Amount{}, err
	}
	reward, err := l.claim(d, del)
	if err != nil {
		return ledger.Amount{}, err
	}
	d.LatestIndexWasUndelegation = false
	if del.Exists() {
		if del.KIndex, err = l.dist.Enter(d); err != nil {
			return ledger.Amount{}, err
		}
	} else {
		// slashed down to nothing
		d.DelegatorCount--
		if err := l.sweep(d); err != nil {
			return ledger.Amount{}, err
		}
	}
	if err := l.setDelegator(del); err != nil {
		return ledger.Amount{}, err
	}
	return reward, l.setData(d)
}

// Outstanding returns the rewards the delegator would receive if withdrawing now.
func (l *Ledger) Outstanding(pool ledger.PoolID, staker, delegator ledger.Address) (ledger.Amount, error) {
	del, err := l.Delegator(pool, staker, delegator)
	if err != nil || !del.Exists() {
		return ledger.Amount{}, err
	}
	d, err := l.Data(pool, staker)
	if err != nil {
		return ledger.Amount{}, err
	}
	return l.dist.Pending(d, del)
}
