// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blocks

import (
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/tx"
)

// JSONBlockSummary is the header part of a block.
type JSONBlockSummary struct {
	Number       uint32         `json:"number"`
	ID           ledger.Bytes32 `json:"id"`
	ParentID     ledger.Bytes32 `json:"parentID"`
	Timestamp    uint64         `json:"timestamp"`
	TxsRoot      ledger.Bytes32 `json:"txsRoot"`
	StateRoot    ledger.Bytes32 `json:"stateRoot"`
	ReceiptsRoot ledger.Bytes32 `json:"receiptsRoot"`
}

// JSONCollapsedBlock lists tx ids only.
type JSONCollapsedBlock struct {
	*JSONBlockSummary
	Transactions []ledger.Bytes32 `json:"transactions"`
}

// JSONExpandedBlock carries receipts and unbonding releases.
type JSONExpandedBlock struct {
	*JSONBlockSummary
	Transactions []*tx.Receipt `json:"transactions"`
	Settled      []*tx.Event   `json:"settled"`
}

func buildJSONBlockSummary(h *block.Header) *JSONBlockSummary {
	return &JSONBlockSummary{
		Number:       h.Number(),
		ID:           h.ID(),
		ParentID:     h.ParentID(),
		Timestamp:    h.Timestamp(),
		TxsRoot:      h.TxsRoot(),
		StateRoot:    h.StateRoot(),
		ReceiptsRoot: h.ReceiptsRoot(),
	}
}

func buildJSONCollapsedBlock(b *block.Block) *JSONCollapsedBlock {
	txs := b.Transactions()
	ids := make([]ledger.Bytes32, len(txs))
	for i, t := range txs {
		ids[i] = t.ID()
	}
	return &JSONCollapsedBlock{buildJSONBlockSummary(b.Header()), ids}
}

func buildJSONExpandedBlock(b *block.Block, receipts *chain.BlockReceipts) *JSONExpandedBlock {
	out := &JSONExpandedBlock{
		JSONBlockSummary: buildJSONBlockSummary(b.Header()),
		Transactions:     receipts.Receipts,
		Settled:          receipts.Settled,
	}
	if out.Transactions == nil {
		out.Transactions = tx.Receipts{}
	}
	if out.Settled == nil {
		out.Settled = []*tx.Event{}
	}
	return out
}
