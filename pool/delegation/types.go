// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"github.com/poolstake/poold/ledger"
)

// PoolData is the delegation record of one staker in one pool.
//
// A record exists while the staker has delegators. Once fully undelegated the record is
// deleted and reads return the zero record.
type PoolData struct {
	ID                         ledger.PoolID  `json:"id,string"`
	Staker                     ledger.Address `json:"staker"`
	TotalDelegation            ledger.Amount  `json:"total_delegation"`
	CurrentRewards             ledger.Amount  `json:"current_rewards"`
	DelegatorCount             uint64         `json:"delegator_count,string"`
	LatestIndexK               uint64         `json:"latest_index_k,string"`
	LatestIndexWasUndelegation bool           `json:"latest_index_was_undelegation"`
}

// Exists reports whether the record is live.
func (d *PoolData) Exists() bool {
	return d.Staker != ""
}

// Delegator is the stake of one delegator with one staker.
type Delegator struct {
	PoolID    ledger.PoolID  `json:"pool_id,string"`
	Staker    ledger.Address `json:"staker"`
	Delegator ledger.Address `json:"delegator"`
	Amount    ledger.Amount  `json:"amount"`
	// KIndex is the reward period the current amount entered at.
	KIndex uint64 `json:"k_index,string"`
}

// Exists reports whether the delegator entry is live.
func (d *Delegator) Exists() bool {
	return !d.Amount.IsZero()
}
