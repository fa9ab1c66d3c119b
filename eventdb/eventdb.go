// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb indexes ledger events in sqlite for filtering.
package eventdb

import (
	"context"
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
)

var logger = log.WithContext("pkg", "eventdb")

// EventDB manages all events
type EventDB struct {
	path          string
	db            *sql.DB
	sqliteVersion string
}

// New open a event db
func New(path string) (*EventDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// in-memory databases are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(eventTableSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	s, _, _ := sqlite3.Version()
	return &EventDB{
		path:          path,
		db:            db,
		sqliteVersion: s,
	}, nil
}

// NewMem create a memory sqlite db
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Insert inserts events in one transaction.
func (db *EventDB) Insert(events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO event(blockNumber, eventIndex, blockID, blockTime, txID, name, poolID, account, staker, amount) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		var txID []byte
		if ev.TxID != nil {
			txID = ev.TxID.Bytes()
		}
		if _, err = stmt.Exec(
			ev.BlockNumber,
			ev.Index,
			ev.BlockID.Bytes(),
			ev.BlockTime,
			txID,
			ev.Name,
			uint64(ev.PoolID),
			ev.Account.String(),
			ev.Staker.String(),
			ev.Amount.String(),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Filter return events with options
func (db *EventDB) Filter(filter *Filter) ([]*Event, error) {
	const selectAll = "SELECT blockNumber, eventIndex, blockID, blockTime, txID, name, poolID, account, staker, amount FROM event"
	if filter == nil {
		return db.query(selectAll + " ORDER BY blockNumber, eventIndex ASC")
	}
	var args []any
	stmt := selectAll + " WHERE 1"
	if filter.Range != nil {
		condition := "blockNumber"
		if filter.Range.Unit == Time {
			condition = "blockTime"
		}
		args = append(args, filter.Range.From)
		stmt += " AND " + condition + " >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND " + condition + " <= ?"
		}
	}
	if filter.PoolID != nil {
		args = append(args, uint64(*filter.PoolID))
		stmt += " AND poolID = ?"
	}
	if filter.Account != nil {
		args = append(args, filter.Account.String(), filter.Account.String())
		stmt += " AND (account = ? OR staker = ?)"
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		stmt += " AND name = ?"
	}

	if filter.Order == DESC {
		stmt += " ORDER BY blockNumber DESC, eventIndex DESC"
	} else {
		stmt += " ORDER BY blockNumber ASC, eventIndex ASC"
	}

	if filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(stmt, args...)
}

func (db *EventDB) query(stmt string, args ...any) ([]*Event, error) {
	rows, err := db.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			ev      Event
			blockID []byte
			txID    []byte
			poolID  uint64
			account string
			staker  string
			amount  string
		)
		if err := rows.Scan(
			&ev.BlockNumber,
			&ev.Index,
			&blockID,
			&ev.BlockTime,
			&txID,
			&ev.Name,
			&poolID,
			&account,
			&staker,
			&amount,
		); err != nil {
			return nil, err
		}
		copy(ev.BlockID[:], blockID)
		if len(txID) > 0 {
			var id ledger.Bytes32
			copy(id[:], txID)
			ev.TxID = &id
		}
		ev.PoolID = ledger.PoolID(poolID)
		ev.Account = ledger.Address(account)
		ev.Staker = ledger.Address(staker)
		if ev.Amount, err = ledger.ParseAmount(amount); err != nil {
			return nil, errors.Wrap(err, "bad amount")
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// LastBlockNumber returns the highest indexed block number and whether any block was indexed.
func (db *EventDB) LastBlockNumber() (uint32, bool, error) {
	var n sql.NullInt64
	if err := db.db.QueryRow("SELECT MAX(blockNumber) FROM event").Scan(&n); err != nil {
		return 0, false, err
	}
	return uint32(n.Int64), n.Valid, nil
}

// BlockEvents flattens the events of an applied block in execution order.
// Unbonding releases come last.
func BlockEvents(applied *chain.Applied) []*Event {
	header := applied.Block.Header()
	var (
		events []*Event
		index  uint32
	)
	for _, r := range applied.Receipts.Receipts {
		if r.Reverted() {
			continue
		}
		txID := r.TxID
		for _, ev := range r.Events {
			events = append(events, NewEvent(header, index, &txID, ev))
			index++
		}
	}
	for _, ev := range applied.Receipts.Settled {
		events = append(events, NewEvent(header, index, nil, ev))
		index++
	}
	return events
}

// IndexBlock stores the events of an applied block.
func (db *EventDB) IndexBlock(applied *chain.Applied) error {
	return db.Insert(BlockEvents(applied))
}

// Follow indexes blocks missed since the last run, then every applied block until ctx is done.
func (db *EventDB) Follow(ctx context.Context, c *chain.Chain) error {
	ch := make(chan *chain.Applied, 64)
	sub := c.Subscribe(ch)
	defer sub.Unsubscribe()

	indexed, err := db.catchUp(c)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case applied := <-ch:
			num := applied.Block.Header().Number()
			if num <= indexed {
				continue
			}
			if err := db.IndexBlock(applied); err != nil {
				return errors.Wrapf(err, "index block %d", num)
			}
			indexed = num
		}
	}
}

// catchUp indexes blocks up to the current best and returns the last indexed number.
// Blocks without events leave no row, so they may be visited again.
func (db *EventDB) catchUp(c *chain.Chain) (uint32, error) {
	last, found, err := db.LastBlockNumber()
	if err != nil {
		return 0, err
	}
	from := uint32(1)
	if found {
		from = last + 1
	}
	best := c.BestBlock().Header().Number()
	for num := from; num <= best; num++ {
		id, err := c.GetBlockIDByNumber(num)
		if err != nil {
			return 0, err
		}
		b, err := c.GetBlock(id)
		if err != nil {
			return 0, err
		}
		receipts, err := c.GetBlockReceipts(id)
		if err != nil {
			return 0, err
		}
		if err := db.IndexBlock(&chain.Applied{Block: b, Receipts: receipts}); err != nil {
			return 0, errors.Wrapf(err, "index block %d", num)
		}
	}
	if best >= from {
		logger.Info("events indexed", "from", from, "to", best)
	}
	return best, nil
}

// Path return db's directory
func (db *EventDB) Path() string {
	return db.path
}

// SQLiteVersion returns the version of the linked sqlite library.
func (db *EventDB) SQLiteVersion() string {
	return db.sqliteVersion
}

// Close close sqlite
func (db *EventDB) Close() error {
	return db.db.Close()
}
