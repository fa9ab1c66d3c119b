// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/tx"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	blockNumber INTEGER NOT NULL,
	eventIndex INTEGER NOT NULL,
	blockID BLOB NOT NULL,
	blockTime INTEGER NOT NULL,
	txID BLOB,
	name TEXT NOT NULL,
	poolID INTEGER NOT NULL,
	account TEXT NOT NULL,
	staker TEXT NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY (blockNumber, eventIndex)
);
CREATE INDEX IF NOT EXISTS eventPool ON event(poolID);
CREATE INDEX IF NOT EXISTS eventAccount ON event(account);
CREATE INDEX IF NOT EXISTS eventStaker ON event(staker);
CREATE INDEX IF NOT EXISTS eventBlockTime ON event(blockTime);`

// Event is a tx event with where it happened.
type Event struct {
	BlockID     ledger.Bytes32 `json:"block_id"`
	BlockNumber uint32         `json:"block_number"`
	BlockTime   uint64         `json:"block_time"`
	// Index of the event in the block
	Index uint32 `json:"index"`
	// TxID is nil for unbonding releases made at block end.
	TxID *ledger.Bytes32 `json:"tx_id"`
	tx.Event
}

// NewEvent creates an event row. A nil txID marks a block-end event.
func NewEvent(header *block.Header, index uint32, txID *ledger.Bytes32, ev *tx.Event) *Event {
	return &Event{
		BlockID:     header.ID(),
		BlockNumber: header.Number(),
		BlockTime:   header.Timestamp(),
		Index:       index,
		TxID:        txID,
		Event:       *ev,
	}
}

// RangeType the unit of a Range.
type RangeType string

const (
	Block RangeType = "block"
	Time  RangeType = "time"
)

// OrderType result order.
type OrderType string

const (
	ASC  OrderType = "asc"
	DESC OrderType = "desc"
)

// Range bounds a filter by block number or time, both ends inclusive.
type Range struct {
	Unit RangeType `json:"unit"`
	From uint64    `json:"from"`
	To   uint64    `json:"to"`
}

// Options paginates results.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Filter selects events. Nil fields match anything.
type Filter struct {
	PoolID *ledger.PoolID `json:"pool_id"`
	// Account matches either the account or the staker of an event.
	Account *ledger.Address `json:"account"`
	Name    string          `json:"name"`
	Range   *Range          `json:"range"`
	Order   OrderType       `json:"order"`
	Options *Options        `json:"options"`
}

// Match reports whether ev passes the pool, account and name conditions of f.
// Range, order and options are ignored.
func (f *Filter) Match(ev *Event) bool {
	if f.PoolID != nil && ev.PoolID != *f.PoolID {
		return false
	}
	if f.Account != nil && ev.Account != *f.Account && ev.Staker != *f.Account {
		return false
	}
	return f.Name == "" || ev.Name == f.Name
}
