// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/poolstake/poold/ledger"
)

// Builder to make it easy to build transaction.
type Builder struct {
	body body
}

// NewBuilder creates a builder for txs of the type.
func NewBuilder(t Type) *Builder {
	return &Builder{body: body{Type: t}}
}

// Origin set the sending account.
func (b *Builder) Origin(origin ledger.Address) *Builder {
	b.body.Origin = origin
	return b
}

// Pool set the target pool.
func (b *Builder) Pool(id ledger.PoolID) *Builder {
	b.body.PoolID = id
	return b
}

// Staker set the addressed staker.
func (b *Builder) Staker(staker ledger.Address) *Builder {
	b.body.Staker = staker
	return b
}

// Target set the staker a redelegation moves to.
func (b *Builder) Target(target ledger.Address) *Builder {
	b.body.Target = target
	return b
}

// Amount set amount.
func (b *Builder) Amount(amount ledger.Amount) *Builder {
	b.body.Amount = amount
	return b
}

// Nonce set nonce.
func (b *Builder) Nonce(nonce uint64) *Builder {
	b.body.Nonce = nonce
	return b
}

// Build build tx object.
func (b *Builder) Build() *Transaction {
	return &Transaction{body: b.body}
}
