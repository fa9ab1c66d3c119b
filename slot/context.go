// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package slot provides typed storage slots over state. Every slot key is derived from a
// namespace, a slot name and the element key, so components cannot collide.
package slot

import (
	"encoding/binary"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/state"
)

// Context binds slots to a namespace within a state.
type Context struct {
	namespace ledger.Bytes32
	state     *state.State
}

// NewContext creates a context for the given namespace.
func NewContext(namespace string, st *state.State) *Context {
	return &Context{
		namespace: ledger.Blake2b([]byte(namespace)),
		state:     st,
	}
}

// State returns the underlying state.
func (c *Context) State() *state.State {
	return c.state
}

func (c *Context) position(name string) ledger.Bytes32 {
	return ledger.Blake2b(c.namespace[:], []byte(name))
}

// Key is anything usable as a mapping key.
type Key interface {
	Bytes() []byte
}

// Uint64 is a numeric mapping key.
type Uint64 uint64

// Bytes returns the big-endian encoding.
func (u Uint64) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(u))
	return b[:]
}

// Composite is a key made of several parts.
type Composite []byte

// Bytes returns the encoded key.
func (c Composite) Bytes() []byte {
	return c
}

// Keys joins parts into a composite key. Each part is length prefixed so that
// ("ab", "c") and ("a", "bc") differ.
func Keys(parts ...Key) Composite {
	var out Composite
	for _, p := range parts {
		b := p.Bytes()
		out = binary.AppendUvarint(out, uint64(len(b)))
		out = append(out, b...)
	}
	return out
}
