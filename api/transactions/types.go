// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transactions

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/tx"
)

// SendTx is a tx submission: either an RLP encoded tx in Raw, or its fields.
type SendTx struct {
	Raw    string         `json:"raw,omitempty"`
	Type   *tx.Type       `json:"type,omitempty"`
	Origin ledger.Address `json:"origin,omitempty"`
	PoolID ledger.PoolID  `json:"pool_id,string,omitempty"`
	Staker ledger.Address `json:"staker,omitempty"`
	Target ledger.Address `json:"target,omitempty"`
	Amount *ledger.Amount `json:"amount,omitempty"`
	Nonce  uint64         `json:"nonce,string,omitempty"`
}

func (s *SendTx) decode() (*tx.Transaction, error) {
	if s.Raw != "" {
		if s.Type != nil {
			return nil, errors.New("raw excludes tx fields")
		}
		data, err := hexutil.Decode(s.Raw)
		if err != nil {
			return nil, err
		}
		var t tx.Transaction
		if err := rlp.DecodeBytes(data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	}
	if s.Type == nil {
		return nil, errors.New("type or raw required")
	}
	b := tx.NewBuilder(*s.Type).Origin(s.Origin).Pool(s.PoolID).Staker(s.Staker).Target(s.Target).Nonce(s.Nonce)
	if s.Amount != nil {
		b.Amount(*s.Amount)
	}
	return b.Build(), nil
}

// BlockContext locates an included tx.
type BlockContext struct {
	ID        ledger.Bytes32 `json:"id"`
	Number    uint32         `json:"number"`
	Timestamp uint64         `json:"timestamp"`
}

func newBlockContext(h *block.Header) *BlockContext {
	return &BlockContext{ID: h.ID(), Number: h.Number(), Timestamp: h.Timestamp()}
}

// Transaction is the JSON form of a tx. Block is nil while the tx is pending.
type Transaction struct {
	ID     ledger.Bytes32 `json:"id"`
	Type   tx.Type        `json:"type"`
	Origin ledger.Address `json:"origin"`
	PoolID ledger.PoolID  `json:"pool_id,string"`
	Staker ledger.Address `json:"staker"`
	Target ledger.Address `json:"target,omitempty"`
	Amount ledger.Amount  `json:"amount"`
	Nonce  uint64         `json:"nonce,string"`
	Raw    string         `json:"raw"`
	Block  *BlockContext  `json:"block"`
}

func convertTransaction(t *tx.Transaction, h *block.Header) (*Transaction, error) {
	raw, err := rlp.EncodeToBytes(t)
	if err != nil {
		return nil, err
	}
	out := &Transaction{
		ID:     t.ID(),
		Type:   t.Type(),
		Origin: t.Origin(),
		PoolID: t.PoolID(),
		Staker: t.Staker(),
		Target: t.Target(),
		Amount: t.Amount(),
		Nonce:  t.Nonce(),
		Raw:    hexutil.Encode(raw),
	}
	if h != nil {
		out.Block = newBlockContext(h)
	}
	return out, nil
}

// Receipt is a tx receipt with its block.
type Receipt struct {
	*tx.Receipt
	CodeName string        `json:"code_name"`
	Block    *BlockContext `json:"block"`
}

func convertReceipt(r *tx.Receipt, h *block.Header) *Receipt {
	return &Receipt{Receipt: r, CodeName: r.Code.String(), Block: newBlockContext(h)}
}
