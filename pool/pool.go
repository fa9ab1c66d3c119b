// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pool is the pool ledger: funding, staking and delegation of pools, the
// transaction handlers mutating them and the projections reading them.
package pool

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/pool/delegation"
	"github.com/poolstake/poold/pool/funders"
	"github.com/poolstake/poold/pool/registry"
	"github.com/poolstake/poold/pool/stakers"
	"github.com/poolstake/poold/pool/unbonding"
	"github.com/poolstake/poold/slot"
	"github.com/poolstake/poold/state"
)

const namespace = "pool"

var logger = log.WithContext("pkg", "pool")

type record struct {
	ID   ledger.PoolID
	Name string
}

// Entry is a funder or staker position in a pool.
type Entry struct {
	Account ledger.Address `json:"account"`
	PoolID  ledger.PoolID  `json:"pool_id,string"`
	Amount  ledger.Amount  `json:"amount"`
}

// Pool is the aggregate view of a pool.
type Pool struct {
	ID              ledger.PoolID  `json:"id,string"`
	Name            string         `json:"name"`
	TotalFunds      ledger.Amount  `json:"total_funds"`
	TotalStake      ledger.Amount  `json:"total_stake"`
	TotalDelegation ledger.Amount  `json:"total_delegation"`
	LowestFunder    ledger.Address `json:"lowest_funder"`
	LowestStaker    ledger.Address `json:"lowest_staker"`
	Funders         []Entry        `json:"funders"`
	Stakers         []Entry        `json:"stakers"`
}

// Pools is the pool ledger over one state.
type Pools struct {
	params     Params
	records    *slot.Mapping[ledger.PoolID, *record]
	ids        *slot.Value[[]ledger.PoolID]
	funders    *funders.Service
	stakers    *stakers.Service
	delegation *delegation.Ledger
	unbonding  *unbonding.Queue
}

// Option customizes the ledger.
type Option func(*options)

type options struct {
	dist delegation.Distribution
}

// WithDistribution replaces the default F1 reward distribution.
func WithDistribution(dist delegation.Distribution) Option {
	return func(o *options) { o.dist = dist }
}

// New creates the pool ledger over st, moving balances through b. Parameters are read
// from st.
func New(st *state.State, b bank.Bank, opts ...Option) (*Pools, error) {
	params, err := LoadParams(st)
	if err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sctx := slot.NewContext(namespace, st)
	queue := unbonding.New(sctx, b)
	stk := stakers.New(sctx, b, queue, stakers.Config{
		MaxStakers:    params.MaxStakers,
		UnbondingTime: params.UnbondingStakingTime,
	})
	return &Pools{
		params:    params,
		records:   slot.NewMapping[ledger.PoolID, *record](sctx, "records"),
		ids:       slot.NewValue[[]ledger.PoolID](sctx, "ids"),
		funders:   funders.New(sctx, b, params.MaxFunders),
		stakers:   stk,
		unbonding: queue,
		delegation: delegation.New(sctx, b, queue, stk, o.dist, delegation.Config{
			UnbondingTime:         params.UnbondingDelegationTime,
			RedelegationCooldown:  params.RedelegationCooldown,
			RedelegationMaxAmount: params.RedelegationMaxAmount,
		}),
	}, nil
}

// Params returns the parameters the ledger runs with.
func (p *Pools) Params() Params {
	return p.params
}

// CreatePool registers an empty pool.
func (p *Pools) CreatePool(id ledger.PoolID, name string) error {
	ok, err := p.Exists(id)
	if err != nil {
		return err
	}
	if ok {
		return errors.Errorf("pool %d already exists", id)
	}
	if err := p.records.Set(id, &record{ID: id, Name: name}); err != nil {
		return errors.Wrap(err, "failed to set pool")
	}
	ids, err := p.ids.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get pool ids")
	}
	if err := p.ids.Set(append(ids, id)); err != nil {
		return errors.Wrap(err, "failed to set pool ids")
	}
	logger.Debug("pool created", "id", id, "name", name)
	return nil
}

// Exists reports whether the pool exists.
func (p *Pools) Exists(id ledger.PoolID) (bool, error) {
	ok, err := p.records.Exists(id)
	if err != nil {
		return false, errors.Wrap(err, "failed to get pool")
	}
	return ok, nil
}

// IDs returns the ids of all pools in creation order.
func (p *Pools) IDs() ([]ledger.PoolID, error) {
	ids, err := p.ids.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool ids")
	}
	return ids, nil
}

func entries(id ledger.PoolID, list []registry.Entry) []Entry {
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		out = append(out, Entry{Account: e.Account, PoolID: id, Amount: e.Amount})
	}
	return out
}

// Get returns the aggregate of the pool, or nil when it does not exist.
func (p *Pools) Get(id ledger.PoolID) (*Pool, error) {
	ok, err := p.Exists(id)
	if err != nil || !ok {
		return nil, err
	}
	rec, err := p.records.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool")
	}

	fl, err := p.funders.List(id)
	if err != nil {
		return nil, err
	}
	sl, err := p.stakers.List(id)
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		ID:      id,
		Name:    rec.Name,
		Funders: entries(id, fl),
		Stakers: entries(id, sl),
	}
	if pool.TotalFunds, err = p.funders.Total(id); err != nil {
		return nil, err
	}
	if pool.TotalStake, err = p.stakers.Total(id); err != nil {
		return nil, err
	}
	if pool.TotalDelegation, err = p.delegation.PoolTotal(id); err != nil {
		return nil, err
	}
	if len(fl) > 0 {
		pool.LowestFunder = fl[0].Account
	}
	if len(sl) > 0 {
		pool.LowestStaker = sl[0].Account
	}
	return pool, nil
}

// List returns the aggregates of all pools.
func (p *Pools) List() ([]*Pool, error) {
	ids, err := p.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]*Pool, 0, len(ids))
	for _, id := range ids {
		pool, err := p.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pool)
	}
	return out, nil
}

// FundersList returns the funders of the pool, lowest first.
func (p *Pools) FundersList(id ledger.PoolID) ([]Entry, error) {
	list, err := p.funders.List(id)
	if err != nil {
		return nil, err
	}
	return entries(id, list), nil
}

// StakersList returns the stakers of the pool, lowest first.
func (p *Pools) StakersList(id ledger.PoolID) ([]Entry, error) {
	list, err := p.stakers.List(id)
	if err != nil {
		return nil, err
	}
	return entries(id, list), nil
}

// DelegationPoolData returns the delegation record of the staker.
func (p *Pools) DelegationPoolData(id ledger.PoolID, staker ledger.Address) (*delegation.PoolData, error) {
	return p.delegation.Data(id, staker)
}

// DelegatorInfo is a delegator entry with its outstanding rewards.
type DelegatorInfo struct {
	delegation.Delegator
	OutstandingRewards ledger.Amount `json:"outstanding_rewards"`
}

// Delegator returns the delegator entry with slashes applied, or nil when absent.
func (p *Pools) Delegator(id ledger.PoolID, staker, delegator ledger.Address) (*DelegatorInfo, error) {
	del, err := p.delegation.Delegator(id, staker, delegator)
	if err != nil || !del.Exists() {
		return nil, err
	}
	if del.Amount, err = p.delegation.CurrentAmount(id, staker, delegator); err != nil {
		return nil, err
	}
	rewards, err := p.delegation.Outstanding(id, staker, delegator)
	if err != nil {
		return nil, err
	}
	return &DelegatorInfo{Delegator: *del, OutstandingRewards: rewards}, nil
}

// Unbondings returns the pending releases of the account.
func (p *Pools) Unbondings(account ledger.Address) ([]*unbonding.Item, error) {
	return p.unbonding.Pending(account)
}
