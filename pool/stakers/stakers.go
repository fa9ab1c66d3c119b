// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakers manages the accounts staking into a pool. Withdrawn stake is released
// through the unbonding queue.
package stakers

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/pool/registry"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/pool/unbonding"
	"github.com/poolstake/poold/slot"
)

var logger = log.WithContext("pkg", "stakers")

// Config holds the staker registry parameters.
type Config struct {
	// MaxStakers caps the registry of each pool. Zero means unbounded.
	MaxStakers uint64
	// UnbondingTime delays the release of withdrawn stake, in seconds.
	UnbondingTime uint64
}

// Service implements the staker registry of all pools.
type Service struct {
	registry *registry.Registry
	bank     bank.Bank
	queue    *unbonding.Queue
	cfg      Config
}

// New creates the service.
func New(sctx *slot.Context, b bank.Bank, queue *unbonding.Queue, cfg Config) *Service {
	return &Service{
		registry: registry.New(sctx, "stakers"),
		bank:     b,
		queue:    queue,
		cfg:      cfg,
	}
}

func (s *Service) unbond(pool ledger.PoolID, account ledger.Address, amount ledger.Amount, now uint64) error {
	_, err := s.queue.Enqueue(unbonding.Item{
		Kind:       unbonding.KindStake,
		Account:    account,
		Amount:     amount,
		PoolID:     pool,
		Staker:     account,
		UnlockTime: now + s.cfg.UnbondingTime,
	})
	return err
}

// Stake commits amount from the account into the pool at block time now.
//
// A new staker joining a full registry must stake strictly more than the lowest staker,
// whose whole stake then starts unbonding. The evicted entry is returned, if any.
func (s *Service) Stake(pool ledger.PoolID, account ledger.Address, amount ledger.Amount, now uint64) (*registry.Entry, error) {
	_, found, err := s.registry.Get(pool, account)
	if err != nil {
		return nil, err
	}

	var evict *registry.Entry
	if !found && s.cfg.MaxStakers > 0 {
		count, err := s.registry.Count(pool)
		if err != nil {
			return nil, err
		}
		if count >= s.cfg.MaxStakers {
			lowest, _, err := s.registry.Lowest(pool)
			if err != nil {
				return nil, err
			}
			if amount.Cmp(lowest.Amount) <= 0 {
				return nil, reverts.New(reverts.StakerListFull,
					"staker list of pool %d is full, amount must exceed %s", pool, lowest.Amount)
			}
			evict = &lowest
		}
	}

	if err := bank.Transfer(s.bank, account, bank.StakingAccount, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			return nil, reverts.New(reverts.InsufficientFunds, "insufficient funds to stake %s", amount)
		}
		return nil, err
	}

	if evict != nil {
		if _, err := s.registry.Remove(pool, evict.Account); err != nil {
			return nil, err
		}
		if err := s.unbond(pool, evict.Account, evict.Amount, now); err != nil {
			return nil, errors.Wrap(err, "failed to unbond evicted staker")
		}
		logger.Debug("evicted lowest staker", "pool", pool, "staker", evict.Account, "amount", evict.Amount)
	}

	if _, err := s.registry.Add(pool, account, amount); err != nil {
		return nil, err
	}
	return evict, nil
}

// Unstake withdraws amount from the staker's entry. The stake leaves the registry at once
// and is credited back after the unbonding time.
func (s *Service) Unstake(pool ledger.PoolID, account ledger.Address, amount ledger.Amount, now uint64) error {
	held, _, err := s.registry.Get(pool, account)
	if err != nil {
		return err
	}
	if _, err := s.registry.Sub(pool, account, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientAmount) {
			return reverts.New(reverts.InsufficientStakerBalance,
				"staker %s holds %s in pool %d, cannot unstake %s", account, held, pool, amount)
		}
		return err
	}
	return s.unbond(pool, account, amount, now)
}

// IsStaker reports whether the account has an active stake in the pool.
func (s *Service) IsStaker(pool ledger.PoolID, account ledger.Address) (bool, error) {
	_, found, err := s.registry.Get(pool, account)
	return found, err
}

func (s *Service) Get(pool ledger.PoolID, account ledger.Address) (ledger.Amount, bool, error) {
	return s.registry.Get(pool, account)
}

// List returns the stakers in rank order, lowest first.
func (s *Service) List(pool ledger.PoolID) ([]registry.Entry, error) {
	return s.registry.Entries(pool)
}

func (s *Service) Lowest(pool ledger.PoolID) (ledger.Address, error) {
	e, _, err := s.registry.Lowest(pool)
	return e.Account, err
}

func (s *Service) Total(pool ledger.PoolID) (ledger.Amount, error) {
	return s.registry.Total(pool)
}

func (s *Service) Count(pool ledger.PoolID) (uint64, error) {
	return s.registry.Count(pool)
}
