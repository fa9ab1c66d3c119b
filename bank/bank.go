// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bank moves balances between accounts. The pool module only depends on the Bank
// interface; Accounts is the state backed implementation used by the chain.
package bank

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/slot"
	"github.com/poolstake/poold/state"
)

// ErrInsufficientFunds is returned by Debit when the balance is lower than the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Module accounts hold the funds committed to pools until they are released. The
// treasury receives slashed delegation.
const (
	FundingAccount    ledger.Address = "module/funding"
	StakingAccount    ledger.Address = "module/staking"
	DelegationAccount ledger.Address = "module/delegation"
	TreasuryAccount   ledger.Address = "module/treasury"
)

// Bank is the balance capability the ledger moves funds through.
type Bank interface {
	// Debit removes amount from the account, failing with ErrInsufficientFunds.
	Debit(account ledger.Address, amount ledger.Amount) error
	Credit(account ledger.Address, amount ledger.Amount) error
	Balance(account ledger.Address) (ledger.Amount, error)
}

// Transfer debits from and credits to. Nothing moves when the debit fails.
func Transfer(b Bank, from, to ledger.Address, amount ledger.Amount) error {
	if err := b.Debit(from, amount); err != nil {
		return err
	}
	return b.Credit(to, amount)
}

// Accounts stores balances in state.
type Accounts struct {
	balances *slot.Mapping[ledger.Address, ledger.Amount]
	supply   *slot.Value[ledger.Amount]
}

var _ Bank = (*Accounts)(nil)

// New creates the accounts over st.
func New(st *state.State) *Accounts {
	ctx := slot.NewContext("bank", st)
	return &Accounts{
		balances: slot.NewMapping[ledger.Address, ledger.Amount](ctx, "balances"),
		supply:   slot.NewValue[ledger.Amount](ctx, "supply"),
	}
}

// Balance returns the balance of the account.
func (a *Accounts) Balance(account ledger.Address) (ledger.Amount, error) {
	bal, err := a.balances.Get(account)
	if err != nil {
		return ledger.Amount{}, errors.Wrap(err, "failed to get balance")
	}
	return bal, nil
}

// Debit implements Bank.
func (a *Accounts) Debit(account ledger.Address, amount ledger.Amount) error {
	bal, err := a.Balance(account)
	if err != nil {
		return err
	}
	left, err := bal.Sub(amount)
	if err != nil {
		return ErrInsufficientFunds
	}
	return a.setBalance(account, left)
}

// Credit implements Bank.
func (a *Accounts) Credit(account ledger.Address, amount ledger.Amount) error {
	bal, err := a.Balance(account)
	if err != nil {
		return err
	}
	sum, err := bal.Add(amount)
	if err != nil {
		return errors.Wrap(err, "credit")
	}
	return a.setBalance(account, sum)
}

// Mint creates amount out of nothing on the account. Only genesis mints.
func (a *Accounts) Mint(account ledger.Address, amount ledger.Amount) error {
	supply, err := a.Supply()
	if err != nil {
		return err
	}
	if supply, err = supply.Add(amount); err != nil {
		return errors.Wrap(err, "mint")
	}
	if err := a.supply.Set(supply); err != nil {
		return errors.Wrap(err, "failed to set supply")
	}
	return a.Credit(account, amount)
}

// Supply returns the total amount minted.
func (a *Accounts) Supply() (ledger.Amount, error) {
	supply, err := a.supply.Get()
	if err != nil {
		return ledger.Amount{}, errors.Wrap(err, "failed to get supply")
	}
	return supply, nil
}

func (a *Accounts) setBalance(account ledger.Address, bal ledger.Amount) error {
	if bal.IsZero() {
		a.balances.Delete(account)
		return nil
	}
	if err := a.balances.Set(account, bal); err != nil {
		return errors.Wrap(err, "failed to set balance")
	}
	return nil
}
