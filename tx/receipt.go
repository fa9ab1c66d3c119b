// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool/reverts"
)

// Event is a ledger movement produced by a transaction or by settlement.
type Event struct {
	Name    string         `json:"name"`
	PoolID  ledger.PoolID  `json:"pool_id,string"`
	Account ledger.Address `json:"account"`
	Staker  ledger.Address `json:"staker"`
	Amount  ledger.Amount  `json:"amount"`
}

// Event names.
const (
	EventFunded            = "funded"
	EventDefunded          = "defunded"
	EventStaked            = "staked"
	EventUnstaked          = "unstaked"
	EventDelegated         = "delegated"
	EventUndelegated       = "undelegated"
	EventRewardsPaid       = "rewards_paid"
	EventRewardsWithdrawn  = "rewards_withdrawn"
	EventUnbondingReleased = "unbonding_released"
	EventRedelegatedFrom   = "redelegated_from"
	EventRedelegatedTo     = "redelegated_to"
	EventSlashed           = "slashed"
)

// Receipt represents the results of a transaction.
type Receipt struct {
	TxID ledger.Bytes32 `json:"tx_id"`
	// Code is zero on success
	Code   reverts.Code `json:"code"`
	Reason string       `json:"reason,omitempty"`
	Events []*Event     `json:"events"`
}

// Reverted reports whether the tx failed.
func (r *Receipt) Reverted() bool {
	return r.Code != reverts.OK
}

// Receipts slice of receipts.
type Receipts []*Receipt
