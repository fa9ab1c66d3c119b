// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
)

// BlockMessage announces an applied block.
type BlockMessage struct {
	Number    uint32         `json:"number"`
	ID        ledger.Bytes32 `json:"id"`
	ParentID  ledger.Bytes32 `json:"parentID"`
	Timestamp uint64         `json:"timestamp"`
	TxCount   int            `json:"txCount"`
	Settled   int            `json:"settled"`
}

func newBlockMessage(a *chain.Applied) *BlockMessage {
	h := a.Block.Header()
	return &BlockMessage{
		Number:    h.Number(),
		ID:        h.ID(),
		ParentID:  h.ParentID(),
		Timestamp: h.Timestamp(),
		TxCount:   len(a.Block.Transactions()),
		Settled:   len(a.Receipts.Settled),
	}
}

// PendingTxMessage announces a tx entering the pool.
type PendingTxMessage struct {
	ID ledger.Bytes32 `json:"id"`
}
