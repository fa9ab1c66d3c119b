// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/poolstake/poold/ledger"
)

// Value is a single rlp-encoded slot.
type Value[V any] struct {
	context *Context
	pos     ledger.Bytes32
}

// NewValue creates the slot called name in the context.
func NewValue[V any](context *Context, name string) *Value[V] {
	return &Value[V]{context: context, pos: context.position(name)}
}

// Get returns the stored value, or the zero value when unset.
func (v *Value[V]) Get() (value V, err error) {
	err = v.context.state.DecodeValue(v.pos, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores the value.
func (v *Value[V]) Set(value V) error {
	return v.context.state.EncodeValue(v.pos, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Delete clears the slot.
func (v *Value[V]) Delete() {
	v.context.state.Delete(v.pos)
}

// Counter is a monotonic uint64 sequence.
type Counter struct {
	value *Value[uint64]
}

// NewCounter creates the counter called name in the context.
func NewCounter(context *Context, name string) *Counter {
	return &Counter{value: NewValue[uint64](context, name)}
}

// Get returns the current count.
func (c *Counter) Get() (uint64, error) {
	return c.value.Get()
}

// Next increments the counter and returns the new count.
func (c *Counter) Next() (uint64, error) {
	n, err := c.value.Get()
	if err != nil {
		return 0, err
	}
	n++
	if err := c.value.Set(n); err != nil {
		return 0, err
	}
	return n, nil
}
