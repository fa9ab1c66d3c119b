// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/state"
)

func newAccounts(t *testing.T) *Accounts {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(state.New(db))
}

func balanceOf(t *testing.T, b Bank, addr ledger.Address) string {
	bal, err := b.Balance(addr)
	require.NoError(t, err)
	return bal.String()
}

func TestDebitCredit(t *testing.T) {
	accs := newAccounts(t)
	alice := ledger.Address("alice")

	require.NoError(t, accs.Mint(alice, ledger.NewAmount(100)))
	assert.Equal(t, "100", balanceOf(t, accs, alice))

	require.NoError(t, accs.Debit(alice, ledger.NewAmount(30)))
	assert.Equal(t, "70", balanceOf(t, accs, alice))

	assert.ErrorIs(t, accs.Debit(alice, ledger.NewAmount(71)), ErrInsufficientFunds)
	assert.Equal(t, "70", balanceOf(t, accs, alice))

	require.NoError(t, accs.Credit(alice, ledger.NewAmount(5)))
	assert.Equal(t, "75", balanceOf(t, accs, alice))

	supply, err := accs.Supply()
	require.NoError(t, err)
	assert.Equal(t, "100", supply.String())
}

func TestTransfer(t *testing.T) {
	accs := newAccounts(t)
	alice, bob := ledger.Address("alice"), ledger.Address("bob")
	require.NoError(t, accs.Mint(alice, ledger.NewAmount(10)))

	require.NoError(t, Transfer(accs, alice, FundingAccount, ledger.NewAmount(10)))
	assert.Equal(t, "0", balanceOf(t, accs, alice))
	assert.Equal(t, "10", balanceOf(t, accs, FundingAccount))

	assert.ErrorIs(t, Transfer(accs, alice, bob, ledger.NewAmount(1)), ErrInsufficientFunds)
	assert.Equal(t, "0", balanceOf(t, accs, bob))
}
