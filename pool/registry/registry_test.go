// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/slot"
	"github.com/poolstake/poold/state"
)

const pool = ledger.PoolID(0)

func amt(v uint64) ledger.Amount {
	return ledger.NewAmount(v)
}

func newRegistry(t *testing.T) *Registry {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(slot.NewContext("test", state.New(db)), "funders")
}

func accounts(t *testing.T, r *Registry) []ledger.Address {
	entries, err := r.Entries(pool)
	require.NoError(t, err)
	out := make([]ledger.Address, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Account)
	}
	return out
}

func lowest(t *testing.T, r *Registry) ledger.Address {
	e, _, err := r.Lowest(pool)
	require.NoError(t, err)
	return e.Account
}

func TestRegistryOrder(t *testing.T) {
	r := newRegistry(t)

	assert.Equal(t, ledger.Address(""), lowest(t, r))

	created, err := r.Add(pool, "alice", amt(100))
	require.NoError(t, err)
	assert.True(t, created)
	_, err = r.Add(pool, "bob", amt(50))
	require.NoError(t, err)
	_, err = r.Add(pool, "charlie", amt(50))
	require.NoError(t, err)

	// equal amounts keep insertion order
	assert.Equal(t, []ledger.Address{"bob", "charlie", "alice"}, accounts(t, r))
	assert.Equal(t, ledger.Address("bob"), lowest(t, r))

	// topping up keeps the original sequence
	created, err = r.Add(pool, "bob", amt(60))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []ledger.Address{"charlie", "alice", "bob"}, accounts(t, r))

	_, err = r.Add(pool, "charlie", amt(60))
	require.NoError(t, err)
	// alice 100, bob 110, charlie 110: bob joined before charlie
	assert.Equal(t, []ledger.Address{"alice", "bob", "charlie"}, accounts(t, r))

	total, err := r.Total(pool)
	require.NoError(t, err)
	assert.Equal(t, "320", total.String())

	count, err := r.Count(pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestRegistrySub(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Add(pool, "alice", amt(80))
	require.NoError(t, err)
	_, err = r.Add(pool, "alice", amt(20))
	require.NoError(t, err)

	left, err := r.Sub(pool, "alice", amt(80))
	require.NoError(t, err)
	assert.Equal(t, "20", left.String())

	_, err = r.Sub(pool, "alice", amt(50))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAmount)
	held, found, err := r.Get(pool, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "20", held.String())

	_, err = r.Sub(pool, "nobody", amt(1))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAmount)

	left, err = r.Sub(pool, "alice", amt(20))
	require.NoError(t, err)
	assert.True(t, left.IsZero())

	_, found, err = r.Get(pool, "alice")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, accounts(t, r))
	assert.Equal(t, ledger.Address(""), lowest(t, r))

	total, err := r.Total(pool)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry(t)
	for i, a := range []ledger.Address{"a", "b", "c"} {
		_, err := r.Add(pool, a, amt(uint64(10*(i+1))))
		require.NoError(t, err)
	}

	held, err := r.Remove(pool, "b")
	require.NoError(t, err)
	assert.Equal(t, "20", held.String())
	assert.Equal(t, []ledger.Address{"a", "c"}, accounts(t, r))

	held, err = r.Remove(pool, "a")
	require.NoError(t, err)
	assert.Equal(t, "10", held.String())
	assert.Equal(t, ledger.Address("c"), lowest(t, r))

	held, err = r.Remove(pool, "missing")
	require.NoError(t, err)
	assert.True(t, held.IsZero())
}

func TestRegistryPoolsAreIndependent(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Add(0, "alice", amt(1))
	require.NoError(t, err)
	_, err = r.Add(1, "alice", amt(2))
	require.NoError(t, err)

	a0, _, err := r.Get(0, "alice")
	require.NoError(t, err)
	a1, _, err := r.Get(1, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", a0.String())
	assert.Equal(t, "2", a1.String())
}

// random operations must keep the list sorted and the total equal to the sum
func TestRegistryRandomOps(t *testing.T) {
	r := newRegistry(t)
	rnd := rand.New(rand.NewPCG(1, 2))
	names := []ledger.Address{"a", "b", "c", "d", "e", "f"}

	held := map[ledger.Address]uint64{}
	seq := map[ledger.Address]int{}
	next := 0

	for range 300 {
		who := names[rnd.IntN(len(names))]
		v := uint64(rnd.IntN(5) + 1)
		if rnd.IntN(2) == 0 {
			_, err := r.Add(pool, who, amt(v))
			require.NoError(t, err)
			if held[who] == 0 {
				next++
				seq[who] = next
			}
			held[who] += v
		} else {
			_, err := r.Sub(pool, who, amt(v))
			if v > held[who] {
				require.ErrorIs(t, err, ledger.ErrInsufficientAmount)
				continue
			}
			require.NoError(t, err)
			held[who] -= v
		}

		var want []ledger.Address
		var sum uint64
		for a, v := range held {
			if v > 0 {
				want = append(want, a)
				sum += v
			}
		}
		sort.Slice(want, func(i, j int) bool {
			if held[want[i]] != held[want[j]] {
				return held[want[i]] < held[want[j]]
			}
			return seq[want[i]] < seq[want[j]]
		})
		got := accounts(t, r)
		if len(want) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, got)
		}

		total, err := r.Total(pool)
		require.NoError(t, err)
		assert.Equal(t, amt(sum), total)
	}
}
