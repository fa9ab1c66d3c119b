// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/slot"
)

// Distribution splits the rewards paid to a staker's delegators.
//
// Rewards accrue in PoolData.CurrentRewards until the next period opens. A delegator
// earns from the period it entered at until the latest opened period.
type Distribution interface {
	// OpenPeriod closes the running period of d, folding its rewards into the
	// distribution, and opens the next one.
	OpenPeriod(d *PoolData) error
	// Enter records a delegator stake entering at the latest period of d.
	Enter(d *PoolData) (k uint64, err error)
	// Exit releases a stake that entered at period k.
	Exit(d *PoolData, k uint64) error
	// Earned returns the rewards of the delegator up to the latest period of d.
	Earned(d *PoolData, del *Delegator) (ledger.Amount, error)
	// Pending returns the rewards of the delegator including the running period.
	Pending(d *PoolData, del *Delegator) (ledger.Amount, error)
	// Current returns the amount of the delegator after the slashes applied to d
	// since it entered.
	Current(d *PoolData, del *Delegator) (ledger.Amount, error)
	// Slash opens a new period of d and cuts its total delegation by fraction, scaled
	// by RewardScale. It returns the amount cut.
	Slash(d *PoolData, fraction ledger.Amount) (ledger.Amount, error)
	// Purge drops whatever the distribution keeps for d.
	Purge(d *PoolData) error
}

// RewardScale is the fixed point scale of the F1 reward index.
var RewardScale = ledger.MustParseAmount("1000000000000000000")

type period struct {
	// Index is the cumulative reward per unslashed delegated unit, scaled by RewardScale.
	Index ledger.Amount
	Refs  uint64
	// Factor is the product of (1 - fraction) over the slashes before the period,
	// scaled by RewardScale. Zero stands for RewardScale.
	Factor ledger.Amount `rlp:"optional"`
}

func (p *period) factor() ledger.Amount {
	if p.Factor.IsZero() {
		return RewardScale
	}
	return p.Factor
}

// F1 is the F1 fee distribution: a cumulative reward-per-unit index per period,
// reference counted so only periods a stake entered at are kept. Slashes scale the
// stake entered at earlier periods by the ratio of the period factors.
type F1 struct {
	periods *slot.Mapping[slot.Composite, *period]
}

var _ Distribution = (*F1)(nil)

// NewF1 creates the distribution storing its periods in sctx.
func NewF1(sctx *slot.Context) *F1 {
	return &F1{periods: slot.NewMapping[slot.Composite, *period](sctx, "delegation/periods")}
}

func periodKey(d *PoolData, k uint64) slot.Composite {
	return slot.Keys(d.ID, d.Staker, slot.Uint64(k))
}

func (f *F1) get(d *PoolData, k uint64) (*period, error) {
	p, err := f.periods.Get(periodKey(d, k))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reward period")
	}
	return p, nil
}

func (f *F1) incRef(d *PoolData, k uint64) error {
	p, err := f.get(d, k)
	if err != nil {
		return err
	}
	p.Refs++
	return f.periods.Set(periodKey(d, k), p)
}

func (f *F1) decRef(d *PoolData, k uint64) error {
	p, err := f.get(d, k)
	if err != nil {
		return err
	}
	if p.Refs == 0 {
		return errors.Errorf("reward period %d of %s is not referenced", k, d.Staker)
	}
	p.Refs--
	if p.Refs == 0 {
		f.periods.Delete(periodKey(d, k))
		return nil
	}
	return f.periods.Set(periodKey(d, k), p)
}

// running returns the index including the rewards of the running period.
func (f *F1) running(d *PoolData) (ledger.Amount, error) {
	latest, err := f.get(d, d.LatestIndexK)
	if err != nil {
		return ledger.Amount{}, err
	}
	if d.TotalDelegation.IsZero() || d.CurrentRewards.IsZero() {
		return latest.Index, nil
	}
	perUnit, err := d.CurrentRewards.MulDiv(latest.factor(), d.TotalDelegation)
	if err != nil {
		return ledger.Amount{}, err
	}
	return latest.Index.Add(perUnit)
}

func (f *F1) OpenPeriod(d *PoolData) error {
	index, err := f.running(d)
	if err != nil {
		return err
	}
	latest, err := f.get(d, d.LatestIndexK)
	if err != nil {
		return err
	}
	// the record itself holds a reference to its latest period
	if d.LatestIndexK > 0 {
		if err := f.decRef(d, d.LatestIndexK); err != nil {
			return err
		}
	}
	d.LatestIndexK++
	d.CurrentRewards = ledger.Amount{}
	return f.periods.Set(periodKey(d, d.LatestIndexK), &period{Index: index, Refs: 1, Factor: latest.factor()})
}

func (f *F1) Enter(d *PoolData) (uint64, error) {
	if err := f.incRef(d, d.LatestIndexK); err != nil {
		return 0, err
	}
	return d.LatestIndexK, nil
}

func (f *F1) Exit(d *PoolData, k uint64) error {
	return f.decRef(d, k)
}

func (f *F1) earned(del *Delegator, from *period, to ledger.Amount) (ledger.Amount, error) {
	diff, err := to.Sub(from.Index)
	if err != nil {
		return ledger.Amount{}, errors.Wrap(err, "reward index went backwards")
	}
	return del.Amount.MulDiv(diff, from.factor())
}

func (f *F1) Earned(d *PoolData, del *Delegator) (ledger.Amount, error) {
	from, err := f.get(d, del.KIndex)
	if err != nil {
		return ledger.Amount{}, err
	}
	to, err := f.get(d, d.LatestIndexK)
	if err != nil {
		return ledger.Amount{}, err
	}
	return f.earned(del, from, to.Index)
}

func (f *F1) Pending(d *PoolData, del *Delegator) (ledger.Amount, error) {
	from, err := f.get(d, del.KIndex)
	if err != nil {
		return ledger.Amount{}, err
	}
	to, err := f.running(d)
	if err != nil {
		return ledger.Amount{}, err
	}
	return f.earned(del, from, to)
}

func (f *F1) Purge(d *PoolData) error {
	if d.LatestIndexK == 0 {
		return nil
	}
	return f.decRef(d, d.LatestIndexK)
}

func (f *F1) Current(d *PoolData, del *Delegator) (ledger.Amount, error) {
	from, err := f.get(d, del.KIndex)
	if err != nil {
		return ledger.Amount{}, err
	}
	latest, err := f.get(d, d.LatestIndexK)
	if err != nil {
		return ledger.Amount{}, err
	}
	if from.factor().Cmp(latest.factor()) == 0 {
		return del.Amount, nil
	}
	return del.Amount.MulDiv(latest.factor(), from.factor())
}

func (f *F1) Slash(d *PoolData, fraction ledger.Amount) (ledger.Amount, error) {
	if fraction.IsZero() || fraction.Cmp(RewardScale) >= 0 {
		return ledger.Amount{}, errors.Errorf("slash fraction %s out of range", fraction)
	}
	if err := f.OpenPeriod(d); err != nil {
		return ledger.Amount{}, err
	}
	latest, err := f.get(d, d.LatestIndexK)
	if err != nil {
		return ledger.Amount{}, err
	}
	keep, err := RewardScale.Sub(fraction)
	if err != nil {
		return ledger.Amount{}, err
	}
	if latest.Factor, err = latest.factor().MulDiv(keep, RewardScale); err != nil {
		return ledger.Amount{}, err
	}
	if latest.Factor.IsZero() {
		return ledger.Amount{}, errors.New("stake factor exhausted")
	}
	if err := f.periods.Set(periodKey(d, d.LatestIndexK), latest); err != nil {
		return ledger.Amount{}, err
	}

	cut, err := d.TotalDelegation.MulDiv(fraction, RewardScale)
	if err != nil {
		return ledger.Amount{}, err
	}
	if d.TotalDelegation, err = d.TotalDelegation.Sub(cut); err != nil {
		return ledger.Amount{}, err
	}
	return cut, nil
}
