// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package unbonding holds withdrawn stake and delegation until their unlock time.
//
// Each kind has its own FIFO queue. Every item of a kind waits the same delay, so each
// queue is ordered by unlock time and settlement only looks at the front.
package unbonding

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/slot"
)

var logger = log.WithContext("pkg", "unbonding")

// Kind tells what was withdrawn.
type Kind uint8

const (
	KindStake Kind = iota + 1
	KindDelegation
)

// Kinds lists every kind in settlement order.
var Kinds = []Kind{KindStake, KindDelegation}

func (k Kind) String() string {
	switch k {
	case KindStake:
		return "stake"
	case KindDelegation:
		return "delegation"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, kind := range Kinds {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return errors.Errorf("unknown unbonding kind %q", text)
}

// ModuleAccount returns the account custodying the funds of the kind.
func (k Kind) ModuleAccount() ledger.Address {
	if k == KindDelegation {
		return bank.DelegationAccount
	}
	return bank.StakingAccount
}

// Bytes implements slot.Key.
func (k Kind) Bytes() []byte {
	return []byte{byte(k)}
}

// Item is a pending release.
type Item struct {
	Index      uint64         `json:"index,string"`
	Kind       Kind           `json:"kind"`
	Account    ledger.Address `json:"account"`
	Amount     ledger.Amount  `json:"amount"`
	PoolID     ledger.PoolID  `json:"pool_id,string"`
	Staker     ledger.Address `json:"staker"`
	UnlockTime uint64         `json:"unlock_time,string"`
}

type ref struct {
	Kind  Kind
	Index uint64
}

// queueState bounds the live items of a queue: indexes in (Low, High].
type queueState struct {
	Low  uint64
	High uint64
}

// Queue is the unbonding queue service.
type Queue struct {
	bank     bank.Bank
	states   *slot.Mapping[Kind, *queueState]
	items    *slot.Mapping[slot.Composite, *Item]
	accounts *slot.Mapping[ledger.Address, []ref]
}

// New creates the queue service.
func New(sctx *slot.Context, b bank.Bank) *Queue {
	return &Queue{
		bank:     b,
		states:   slot.NewMapping[Kind, *queueState](sctx, "unbonding/states"),
		items:    slot.NewMapping[slot.Composite, *Item](sctx, "unbonding/items"),
		accounts: slot.NewMapping[ledger.Address, []ref](sctx, "unbonding/accounts"),
	}
}

func itemKey(kind Kind, index uint64) slot.Composite {
	return slot.Keys(kind, slot.Uint64(index))
}

// Enqueue appends the item to the queue of its kind and returns its index.
func (q *Queue) Enqueue(item Item) (uint64, error) {
	if item.Kind != KindStake && item.Kind != KindDelegation {
		return 0, errors.Errorf("unknown unbonding kind %d", item.Kind)
	}
	st, err := q.states.Get(item.Kind)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get queue state")
	}
	st.High++
	item.Index = st.High

	if err := q.items.Set(itemKey(item.Kind, item.Index), &item); err != nil {
		return 0, errors.Wrap(err, "failed to set unbonding item")
	}
	if err := q.states.Set(item.Kind, st); err != nil {
		return 0, errors.Wrap(err, "failed to set queue state")
	}

	refs, err := q.accounts.Get(item.Account)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account unbondings")
	}
	if err := q.accounts.Set(item.Account, append(refs, ref{item.Kind, item.Index})); err != nil {
		return 0, errors.Wrap(err, "failed to set account unbondings")
	}

	logger.Debug("unbonding queued",
		"kind", item.Kind, "index", item.Index, "account", item.Account,
		"amount", item.Amount, "unlock", item.UnlockTime)
	return item.Index, nil
}

// Settle releases every item whose unlock time is not after now, crediting each account
// from the module account of the item's kind. Released items are removed in the same
// step, so settling again for the same time releases nothing.
func (q *Queue) Settle(now uint64) ([]*Item, error) {
	var settled []*Item
	for _, kind := range Kinds {
		items, err := q.settleKind(kind, now)
		if err != nil {
			return nil, err
		}
		settled = append(settled, items...)
	}
	return settled, nil
}

func (q *Queue) settleKind(kind Kind, now uint64) ([]*Item, error) {
	st, err := q.states.Get(kind)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queue state")
	}
	start := st.Low

	var settled []*Item
	for st.Low < st.High {
		key := itemKey(kind, st.Low+1)
		exists, err := q.items.Exists(key)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get unbonding item")
		}
		if exists {
			item, err := q.items.Get(key)
			if err != nil {
				return nil, errors.Wrap(err, "failed to get unbonding item")
			}
			if item.UnlockTime > now {
				break
			}
			if err := q.release(item); err != nil {
				return nil, err
			}
			settled = append(settled, item)
		}
		st.Low++
	}

	if st.Low == start {
		return nil, nil
	}
	if err := q.states.Set(kind, st); err != nil {
		return nil, errors.Wrap(err, "failed to set queue state")
	}
	return settled, nil
}

func (q *Queue) release(item *Item) error {
	if err := bank.Transfer(q.bank, item.Kind.ModuleAccount(), item.Account, item.Amount); err != nil {
		return errors.Wrapf(err, "failed to release unbonding %s/%d", item.Kind, item.Index)
	}
	q.items.Delete(itemKey(item.Kind, item.Index))

	refs, err := q.accounts.Get(item.Account)
	if err != nil {
		return errors.Wrap(err, "failed to get account unbondings")
	}
	kept := refs[:0]
	for _, r := range refs {
		if r.Kind != item.Kind || r.Index != item.Index {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		q.accounts.Delete(item.Account)
	} else if err := q.accounts.Set(item.Account, kept); err != nil {
		return errors.Wrap(err, "failed to set account unbondings")
	}

	logger.Debug("unbonding released",
		"kind", item.Kind, "index", item.Index, "account", item.Account, "amount", item.Amount)
	return nil
}

// Pending returns the items waiting for the account, oldest first per kind.
func (q *Queue) Pending(account ledger.Address) ([]*Item, error) {
	refs, err := q.accounts.Get(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account unbondings")
	}
	items := make([]*Item, 0, len(refs))
	for _, r := range refs {
		item, err := q.items.Get(itemKey(r.Kind, r.Index))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get unbonding item")
		}
		items = append(items, item)
	}
	return items, nil
}

// Len returns the number of items waiting in the queue of the kind.
func (q *Queue) Len(kind Kind) (uint64, error) {
	st, err := q.states.Get(kind)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get queue state")
	}
	return st.High - st.Low, nil
}
