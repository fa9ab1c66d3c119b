// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
)

// Transaction is an immutable tx type.
type Transaction struct {
	body body

	cache struct {
		id atomic.Pointer[ledger.Bytes32]
	}
}

// body describes details of a tx.
type body struct {
	Type   Type
	Origin ledger.Address
	PoolID ledger.PoolID
	Staker ledger.Address
	Amount ledger.Amount
	Nonce  uint64
	Target ledger.Address `rlp:"optional"`
}

// ID returns the id of tx, the hash of its encoding.
func (t *Transaction) ID() ledger.Bytes32 {
	if cached := t.cache.id.Load(); cached != nil {
		return *cached
	}
	id := ledger.Blake2bFn(func(w io.Writer) {
		rlp.Encode(w, &t.body)
	})
	t.cache.id.Store(&id)
	return id
}

func (t *Transaction) Type() Type {
	return t.body.Type
}

// Origin returns the account sending the tx.
func (t *Transaction) Origin() ledger.Address {
	return t.body.Origin
}

func (t *Transaction) PoolID() ledger.PoolID {
	return t.body.PoolID
}

// Staker returns the staker a delegation tx addresses.
func (t *Transaction) Staker() ledger.Address {
	return t.body.Staker
}

func (t *Transaction) Amount() ledger.Amount {
	return t.body.Amount
}

// Target returns the staker a redelegation moves to.
func (t *Transaction) Target() ledger.Address {
	return t.body.Target
}

// Nonce distinguishes otherwise identical txs.
func (t *Transaction) Nonce() uint64 {
	return t.body.Nonce
}

// Validate checks the tx is well formed. It does not look at any state.
func (t *Transaction) Validate() error {
	if _, ok := typeNames[t.body.Type]; !ok {
		return ErrTxTypeNotSupported
	}
	if t.body.Origin.IsZero() {
		return errors.New("origin required")
	}
	if t.body.Type.NeedsStaker() && t.body.Staker.IsZero() {
		return errors.Errorf("%s requires a staker", t.body.Type)
	}
	if !t.body.Type.NeedsStaker() && !t.body.Staker.IsZero() {
		return errors.Errorf("%s does not take a staker", t.body.Type)
	}
	if t.body.Type.NeedsTarget() && t.body.Target.IsZero() {
		return errors.Errorf("%s requires a target staker", t.body.Type)
	}
	if !t.body.Type.NeedsTarget() && !t.body.Target.IsZero() {
		return errors.Errorf("%s does not take a target staker", t.body.Type)
	}
	if !t.body.Type.NeedsAmount() && !t.body.Amount.IsZero() {
		return errors.Errorf("%s does not take an amount", t.body.Type)
	}
	return nil
}

// EncodeRLP implements rlp.Encoder
func (t *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &t.body)
}

// DecodeRLP implements rlp.Decoder
func (t *Transaction) DecodeRLP(s *rlp.Stream) error {
	var body body
	if err := s.Decode(&body); err != nil {
		return err
	}
	t.body = body
	t.cache.id.Store(nil)
	return nil
}

// Transactions a slice of transactions.
type Transactions []*Transaction

// RootHash hashes the ids of the transactions in order.
func (txs Transactions) RootHash() ledger.Bytes32 {
	return ledger.Blake2bFn(func(w io.Writer) {
		for _, t := range txs {
			id := t.ID()
			w.Write(id[:])
		}
	})
}
