// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry keeps, per pool, a set of accounts with committed amounts. Entries are
// linked in rank order: amount ascending, then insertion sequence ascending. The head of
// the list is the lowest entry.
package registry

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/slot"
)

// Entry is a member of a registry.
type Entry struct {
	Account ledger.Address
	Amount  ledger.Amount
}

type node struct {
	Amount ledger.Amount
	Seq    uint64
	Prev   ledger.Address
	Next   ledger.Address
}

// before reports whether n ranks before o.
func (n *node) before(o *node) bool {
	if c := n.Amount.Cmp(o.Amount); c != 0 {
		return c < 0
	}
	return n.Seq < o.Seq
}

type header struct {
	Head  ledger.Address
	Tail  ledger.Address
	Count uint64
	Total ledger.Amount
	Seq   uint64
}

// Registry stores the ranked entries of every pool.
type Registry struct {
	headers *slot.Mapping[ledger.PoolID, *header]
	nodes   *slot.Mapping[slot.Composite, *node]
}

// New creates a registry named name in the context.
func New(sctx *slot.Context, name string) *Registry {
	return &Registry{
		headers: slot.NewMapping[ledger.PoolID, *header](sctx, name+"/headers"),
		nodes:   slot.NewMapping[slot.Composite, *node](sctx, name+"/nodes"),
	}
}

func nodeKey(pool ledger.PoolID, account ledger.Address) slot.Composite {
	return slot.Keys(pool, account)
}

func (r *Registry) getHeader(pool ledger.PoolID) (*header, error) {
	h, err := r.headers.Get(pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get registry header")
	}
	return h, nil
}

func (r *Registry) setHeader(pool ledger.PoolID, h *header) error {
	// an empty registry leaves nothing behind and restarts its sequence
	if h.Count == 0 {
		r.headers.Delete(pool)
		return nil
	}
	if err := r.headers.Set(pool, h); err != nil {
		return errors.Wrap(err, "failed to set registry header")
	}
	return nil
}

// getNode returns nil when the account is not in the registry.
func (r *Registry) getNode(pool ledger.PoolID, account ledger.Address) (*node, error) {
	if account.IsZero() {
		return nil, nil
	}
	key := nodeKey(pool, account)
	exists, err := r.nodes.Exists(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get registry entry")
	}
	if !exists {
		return nil, nil
	}
	n, err := r.nodes.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get registry entry")
	}
	return n, nil
}

func (r *Registry) mustGetNode(pool ledger.PoolID, account ledger.Address) (*node, error) {
	n, err := r.getNode(pool, account)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Errorf("registry corrupted: missing entry %s in pool %d", account, pool)
	}
	return n, nil
}

func (r *Registry) setNode(pool ledger.PoolID, account ledger.Address, n *node) error {
	if err := r.nodes.Set(nodeKey(pool, account), n); err != nil {
		return errors.Wrap(err, "failed to set registry entry")
	}
	return nil
}

// unlink detaches the node from its neighbours, updating head and tail.
func (r *Registry) unlink(pool ledger.PoolID, h *header, account ledger.Address, n *node) error {
	if n.Prev.IsZero() {
		h.Head = n.Next
	} else {
		prev, err := r.mustGetNode(pool, n.Prev)
		if err != nil {
			return err
		}
		prev.Next = n.Next
		if err := r.setNode(pool, n.Prev, prev); err != nil {
			return err
		}
	}
	if n.Next.IsZero() {
		h.Tail = n.Prev
	} else {
		next, err := r.mustGetNode(pool, n.Next)
		if err != nil {
			return err
		}
		next.Prev = n.Prev
		if err := r.setNode(pool, n.Next, next); err != nil {
			return err
		}
	}
	n.Prev, n.Next = "", ""
	return nil
}

// link inserts the node before the first node it ranks before, or at the tail.
func (r *Registry) link(pool ledger.PoolID, h *header, account ledger.Address, n *node) error {
	var prevAddr ledger.Address
	cur := h.Head
	for !cur.IsZero() {
		curNode, err := r.mustGetNode(pool, cur)
		if err != nil {
			return err
		}
		if n.before(curNode) {
			break
		}
		prevAddr, cur = cur, curNode.Next
	}

	n.Prev, n.Next = prevAddr, cur
	if prevAddr.IsZero() {
		h.Head = account
	} else {
		prev, err := r.mustGetNode(pool, prevAddr)
		if err != nil {
			return err
		}
		prev.Next = account
		if err := r.setNode(pool, prevAddr, prev); err != nil {
			return err
		}
	}
	if cur.IsZero() {
		h.Tail = account
	} else {
		next, err := r.mustGetNode(pool, cur)
		if err != nil {
			return err
		}
		next.Prev = account
		if err := r.setNode(pool, cur, next); err != nil {
			return err
		}
	}
	return r.setNode(pool, account, n)
}

// Get returns the amount held by the account and whether it is in the registry.
func (r *Registry) Get(pool ledger.PoolID, account ledger.Address) (ledger.Amount, bool, error) {
	n, err := r.getNode(pool, account)
	if err != nil || n == nil {
		return ledger.Amount{}, false, err
	}
	return n.Amount, true, nil
}

// Add increases the entry of the account by amount, creating it when absent.
// It returns whether the entry was created.
func (r *Registry) Add(pool ledger.PoolID, account ledger.Address, amount ledger.Amount) (bool, error) {
	if account.IsZero() {
		return false, errors.New("empty account")
	}
	h, err := r.getHeader(pool)
	if err != nil {
		return false, err
	}
	n, err := r.getNode(pool, account)
	if err != nil {
		return false, err
	}

	created := n == nil
	if created {
		h.Seq++
		h.Count++
		n = &node{Amount: amount, Seq: h.Seq}
	} else {
		if err := r.unlink(pool, h, account, n); err != nil {
			return false, err
		}
		if n.Amount, err = n.Amount.Add(amount); err != nil {
			return false, errors.Wrap(err, "entry amount")
		}
	}
	if h.Total, err = h.Total.Add(amount); err != nil {
		return false, errors.Wrap(err, "registry total")
	}
	if err := r.link(pool, h, account, n); err != nil {
		return false, err
	}
	return created, r.setHeader(pool, h)
}

// Sub decreases the entry of the account by amount and returns what is left. The entry is
// removed when nothing is left. An absent entry holds zero, so any positive amount fails
// with ledger.ErrInsufficientAmount and nothing changes.
func (r *Registry) Sub(pool ledger.PoolID, account ledger.Address, amount ledger.Amount) (ledger.Amount, error) {
	n, err := r.getNode(pool, account)
	if err != nil {
		return ledger.Amount{}, err
	}
	var held ledger.Amount
	if n != nil {
		held = n.Amount
	}
	left, err := held.Sub(amount)
	if err != nil {
		return ledger.Amount{}, err
	}
	if n == nil {
		// amount is zero
		return left, nil
	}

	h, err := r.getHeader(pool)
	if err != nil {
		return ledger.Amount{}, err
	}
	if h.Total, err = h.Total.Sub(amount); err != nil {
		return ledger.Amount{}, errors.Wrap(err, "registry total")
	}
	if err := r.unlink(pool, h, account, n); err != nil {
		return ledger.Amount{}, err
	}
	if left.IsZero() {
		r.nodes.Delete(nodeKey(pool, account))
		h.Count--
	} else {
		n.Amount = left
		if err := r.link(pool, h, account, n); err != nil {
			return ledger.Amount{}, err
		}
	}
	return left, r.setHeader(pool, h)
}

// Remove deletes the entry of the account and returns the amount it held.
func (r *Registry) Remove(pool ledger.PoolID, account ledger.Address) (ledger.Amount, error) {
	held, found, err := r.Get(pool, account)
	if err != nil || !found {
		return ledger.Amount{}, err
	}
	if _, err := r.Sub(pool, account, held); err != nil {
		return ledger.Amount{}, err
	}
	return held, nil
}

// Lowest returns the lowest ranked entry, if any.
func (r *Registry) Lowest(pool ledger.PoolID) (Entry, bool, error) {
	h, err := r.getHeader(pool)
	if err != nil || h.Head.IsZero() {
		return Entry{}, false, err
	}
	n, err := r.mustGetNode(pool, h.Head)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Account: h.Head, Amount: n.Amount}, true, nil
}

// Entries returns all entries in rank order.
func (r *Registry) Entries(pool ledger.PoolID) ([]Entry, error) {
	h, err := r.getHeader(pool)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, h.Count)
	for cur := h.Head; !cur.IsZero(); {
		n, err := r.mustGetNode(pool, cur)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Account: cur, Amount: n.Amount})
		cur = n.Next
	}
	return entries, nil
}

// Total returns the sum of all entry amounts.
func (r *Registry) Total(pool ledger.PoolID) (ledger.Amount, error) {
	h, err := r.getHeader(pool)
	if err != nil {
		return ledger.Amount{}, err
	}
	return h.Total, nil
}

// Count returns the number of entries.
func (r *Registry) Count(pool ledger.PoolID) (uint64, error) {
	h, err := r.getHeader(pool)
	if err != nil {
		return 0, err
	}
	return h.Count, nil
}
