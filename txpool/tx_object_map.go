// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/tx"
)

type txObject struct {
	*tx.Transaction
	timeAdded int64
	seq       uint64
}

// txObjectMap maps tx id to tx object and tracks per-origin quota.
type txObjectMap struct {
	lock  sync.RWMutex
	byID  map[ledger.Bytes32]*txObject
	quota map[ledger.Address]int
	seq   uint64
}

func newTxObjectMap() *txObjectMap {
	return &txObjectMap{
		byID:  make(map[ledger.Bytes32]*txObject),
		quota: make(map[ledger.Address]int),
	}
}

func (m *txObjectMap) Contains(id ledger.Bytes32) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, found := m.byID[id]
	return found
}

// Add returns false if the tx is already present.
func (m *txObjectMap) Add(t *tx.Transaction, limitPerAccount int) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := t.ID()
	if _, found := m.byID[id]; found {
		return false, nil
	}
	if limitPerAccount > 0 && m.quota[t.Origin()] >= limitPerAccount {
		return false, errors.New("account quota exceeded")
	}
	m.seq++
	m.byID[id] = &txObject{Transaction: t, timeAdded: time.Now().UnixNano(), seq: m.seq}
	m.quota[t.Origin()]++
	return true, nil
}

func (m *txObjectMap) Get(id ledger.Bytes32) *txObject {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.byID[id]
}

func (m *txObjectMap) Remove(id ledger.Bytes32) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	obj, found := m.byID[id]
	if !found {
		return false
	}
	delete(m.byID, id)
	if m.quota[obj.Origin()] > 1 {
		m.quota[obj.Origin()]--
	} else {
		delete(m.quota, obj.Origin())
	}
	return true
}

func (m *txObjectMap) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.byID)
}

// ToTxObjects returns the objects in arrival order. Txs of one origin are
// reordered by nonce within the arrival slots they occupy.
func (m *txObjectMap) ToTxObjects() []*txObject {
	m.lock.RLock()
	byOrigin := make(map[ledger.Address][]*txObject, len(m.quota))
	for _, obj := range m.byID {
		byOrigin[obj.Origin()] = append(byOrigin[obj.Origin()], obj)
	}
	n := len(m.byID)
	m.lock.RUnlock()

	type slotted struct {
		obj  *txObject
		slot uint64
	}
	all := make([]slotted, 0, n)
	for _, objs := range byOrigin {
		slots := make([]uint64, len(objs))
		for i, obj := range objs {
			slots[i] = obj.seq
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
		sort.Slice(objs, func(i, j int) bool {
			if objs[i].Nonce() != objs[j].Nonce() {
				return objs[i].Nonce() < objs[j].Nonce()
			}
			return objs[i].seq < objs[j].seq
		})
		for i, obj := range objs {
			all = append(all, slotted{obj, slots[i]})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].slot < all[j].slot })

	objs := make([]*txObject, 0, len(all))
	for _, s := range all {
		objs = append(objs, s.obj)
	}
	return objs
}

func (m *txObjectMap) ToTxs() tx.Transactions {
	objs := m.ToTxObjects()
	txs := make(tx.Transactions, 0, len(objs))
	for _, obj := range objs {
		txs = append(txs, obj.Transaction)
	}
	return txs
}
