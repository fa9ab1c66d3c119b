// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	_, err := NewLRU[string, int](0)
	assert.Error(t, err)

	c, err := NewLRU[string, int](2)
	require.NoError(t, err)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	loads := 0
	load := func(k string) (int, error) {
		loads++
		if k == "bad" {
			return 0, errors.New("bad key")
		}
		return len(k), nil
	}
	v, err = c.GetOrLoad("dddd", load)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	v, err = c.GetOrLoad("dddd", load)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.Equal(t, 1, loads)

	_, err = c.GetOrLoad("bad", load)
	assert.EqualError(t, err, "bad key")
	_, ok = c.Get("bad")
	assert.False(t, ok)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestCacheStats(t *testing.T) {
	cs := &Stats{}
	cs.Hit()
	cs.Miss()
	_, hit, miss := cs.Stats()

	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(1), miss)

	changed, _, _ := cs.Stats()
	assert.False(t, changed)

	cs.Hit()
	cs.Miss()
	assert.Equal(t, int64(3), cs.Hit())

	changed, hit, miss = cs.Stats()
	assert.True(t, changed)
	assert.Equal(t, int64(3), hit)
	assert.Equal(t, int64(2), miss)
}
