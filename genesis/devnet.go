// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool"
)

// DevAccounts returns the prefunded accounts of the devnet.
func DevAccounts() []ledger.Address {
	return []ledger.Address{"alice", "bob", "charlie", "dave", "eve"}
}

// DevnetTemplate returns the custom genesis the devnet is built from.
func DevnetTemplate() *CustomGenesis {
	params := pool.DefaultParams()
	// short enough to watch unbondings settle on a dev chain
	params.UnbondingStakingTime = 10
	params.UnbondingDelegationTime = 10
	params.RedelegationCooldown = 60
	params.Authorities = []ledger.Address{"alice"}

	var accounts []Account
	for _, a := range DevAccounts() {
		accounts = append(accounts, Account{
			Address: a,
			Balance: ledger.MustParseAmount("1000000000000000"),
		})
	}
	return &CustomGenesis{
		Name:       "devnet",
		LaunchTime: 1735689600,
		Params:     &params,
		Pools:      []Pool{{ID: 0, Name: "devpool"}},
		Accounts:   accounts,
	}
}

// NewDevnet create genesis for solo mode.
func NewDevnet() *Genesis {
	gen, err := NewCustomNet(DevnetTemplate())
	if err != nil {
		panic(err)
	}
	return gen
}
