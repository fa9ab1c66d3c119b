// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/poolstake/poold/ledger"
)

// Mapping is a key/value storage abstraction with rlp-encoded values.
// Reading an absent key yields the zero value; when V is a pointer type a freshly
// allocated zero element is returned instead of nil.
type Mapping[K Key, V any] struct {
	context *Context
	basePos ledger.Bytes32
}

// NewMapping creates the mapping called name in the context.
func NewMapping[K Key, V any](context *Context, name string) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: context.position(name)}
}

func (m *Mapping[K, V]) position(key K) ledger.Bytes32 {
	return ledger.Blake2b(key.Bytes(), m.basePos[:])
}

// Get returns the value stored for key.
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	err = m.context.state.DecodeValue(m.position(key), func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Exists returns whether a value is stored for key.
func (m *Mapping[K, V]) Exists(key K) (bool, error) {
	raw, err := m.context.state.GetRaw(m.position(key))
	if err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}

// Set stores value for key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	return m.context.state.EncodeValue(m.position(key), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Delete clears the value stored for key.
func (m *Mapping[K, V]) Delete(key K) {
	m.context.state.Delete(m.position(key))
}
