// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
)

func M(a ...any) []any {
	return a
}

func newTestState(t *testing.T) (*State, *lvldb.LevelDB) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

func TestStateCheckpoint(t *testing.T) {
	st, _ := newTestState(t)

	k1 := ledger.Blake2b([]byte("k1"))
	k2 := ledger.Blake2b([]byte("k2"))

	assert.Equal(t, M([]byte(nil), nil), M(st.GetRaw(k1)))

	st.SetRaw(k1, []byte("v1"))
	cp := st.NewCheckpoint()
	st.SetRaw(k1, []byte("v1'"))
	st.SetRaw(k2, []byte("v2"))
	assert.Equal(t, M([]byte("v1'"), nil), M(st.GetRaw(k1)))

	st.RevertTo(cp)
	assert.Equal(t, M([]byte("v1"), nil), M(st.GetRaw(k1)))
	assert.Equal(t, M([]byte(nil), nil), M(st.GetRaw(k2)))

	// reverting everything leaves a usable state
	st.RevertTo(0)
	st.SetRaw(k2, []byte("v2"))
	assert.Equal(t, M([]byte(nil), nil), M(st.GetRaw(k1)))
	assert.Equal(t, M([]byte("v2"), nil), M(st.GetRaw(k2)))
}

func TestStageCommit(t *testing.T) {
	st, db := newTestState(t)

	k1 := ledger.Blake2b([]byte("k1"))
	k2 := ledger.Blake2b([]byte("k2"))
	require.NoError(t, db.Put(k2[:], []byte("old")))

	st.SetRaw(k1, []byte("a"))
	st.SetRaw(k1, []byte("b"))
	st.Delete(k2)

	stage := st.Stage()
	assert.Equal(t, 2, stage.Len())

	bulk := db.Bulk()
	require.NoError(t, stage.Commit(bulk))
	require.NoError(t, bulk.Write())

	assert.Equal(t, M([]byte("b"), nil), M(kv.Get(db, k1[:])))
	assert.Equal(t, M([]byte(nil), nil), M(kv.Get(db, k2[:])))

	// same changes, same hash
	other, _ := newTestState(t)
	other.Delete(k2)
	other.SetRaw(k1, []byte("b"))
	assert.Equal(t, stage.Hash(), other.Stage().Hash())
}

func TestStateCodec(t *testing.T) {
	st, _ := newTestState(t)
	key := ledger.Blake2b([]byte("codec"))

	require.NoError(t, st.EncodeValue(key, func() ([]byte, error) { return []byte("x"), nil }))

	var got []byte
	require.NoError(t, st.DecodeValue(key, func(b []byte) error {
		got = b
		return nil
	}))
	assert.Equal(t, []byte("x"), got)

	boom := errors.New("boom")
	err := st.EncodeValue(key, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	var stErr *Error
	assert.True(t, errors.As(err, &stErr))
}
