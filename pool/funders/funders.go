// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package funders manages the accounts funding a pool. Funds are held by the funding
// module account and returned immediately on defund.
package funders

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/pool/registry"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/slot"
)

var logger = log.WithContext("pkg", "funders")

// Service implements the funder registry of all pools.
type Service struct {
	registry   *registry.Registry
	bank       bank.Bank
	maxFunders uint64
}

// New creates the service. A maxFunders of zero means unbounded.
func New(sctx *slot.Context, b bank.Bank, maxFunders uint64) *Service {
	return &Service{
		registry:   registry.New(sctx, "funders"),
		bank:       b,
		maxFunders: maxFunders,
	}
}

// Fund commits amount from the account to the pool.
//
// A new funder joining a full registry must commit strictly more than the lowest funder,
// who is then removed and refunded. The evicted entry is returned, if any.
func (s *Service) Fund(pool ledger.PoolID, account ledger.Address, amount ledger.Amount) (*registry.Entry, error) {
	_, found, err := s.registry.Get(pool, account)
	if err != nil {
		return nil, err
	}

	var evict *registry.Entry
	if !found && s.maxFunders > 0 {
		count, err := s.registry.Count(pool)
		if err != nil {
			return nil, err
		}
		if count >= s.maxFunders {
			lowest, _, err := s.registry.Lowest(pool)
			if err != nil {
				return nil, err
			}
			if amount.Cmp(lowest.Amount) <= 0 {
				return nil, reverts.New(reverts.FunderListFull,
					"funder list of pool %d is full, amount must exceed %s", pool, lowest.Amount)
			}
			evict = &lowest
		}
	}

	if err := bank.Transfer(s.bank, account, bank.FundingAccount, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			return nil, reverts.New(reverts.InsufficientFunds, "insufficient funds to fund %s", amount)
		}
		return nil, err
	}

	if evict != nil {
		if _, err := s.registry.Remove(pool, evict.Account); err != nil {
			return nil, err
		}
		if err := bank.Transfer(s.bank, bank.FundingAccount, evict.Account, evict.Amount); err != nil {
			return nil, errors.Wrap(err, "failed to refund evicted funder")
		}
		logger.Debug("evicted lowest funder", "pool", pool, "funder", evict.Account, "amount", evict.Amount)
	}

	if _, err := s.registry.Add(pool, account, amount); err != nil {
		return nil, err
	}
	return evict, nil
}

// Defund returns amount from the funder's entry to the account.
func (s *Service) Defund(pool ledger.PoolID, account ledger.Address, amount ledger.Amount) error {
	held, _, err := s.registry.Get(pool, account)
	if err != nil {
		return err
	}
	if _, err := s.registry.Sub(pool, account, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientAmount) {
			return reverts.New(reverts.InsufficientFunderBalance,
				"funder %s holds %s in pool %d, cannot defund %s", account, held, pool, amount)
		}
		return err
	}
	if err := bank.Transfer(s.bank, bank.FundingAccount, account, amount); err != nil {
		return errors.Wrap(err, "failed to return funds")
	}
	return nil
}

// Get returns the amount funded by the account.
func (s *Service) Get(pool ledger.PoolID, account ledger.Address) (ledger.Amount, bool, error) {
	return s.registry.Get(pool, account)
}

// List returns the funders in rank order, lowest first.
func (s *Service) List(pool ledger.PoolID) ([]registry.Entry, error) {
	return s.registry.Entries(pool)
}

// Lowest returns the lowest funder, or an empty address.
func (s *Service) Lowest(pool ledger.PoolID) (ledger.Address, error) {
	e, _, err := s.registry.Lowest(pool)
	return e.Account, err
}

// Total returns the sum of all funded amounts.
func (s *Service) Total(pool ledger.PoolID) (ledger.Amount, error) {
	return s.registry.Total(pool)
}

// Count returns the number of funders.
func (s *Service) Count(pool ledger.PoolID) (uint64, error) {
	return s.registry.Count(pool)
}
