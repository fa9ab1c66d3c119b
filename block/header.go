// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/poolstake/poold/ledger"
)

// Header contains all information about a block, except block body.
// It's immutable.
type Header struct {
	body headerBody

	cache struct {
		id atomic.Pointer[ledger.Bytes32]
	}
}

// headerBody body of header
type headerBody struct {
	ParentID  ledger.Bytes32
	Timestamp uint64

	TxsRoot      ledger.Bytes32
	StateRoot    ledger.Bytes32
	ReceiptsRoot ledger.Bytes32
}

// ParentID returns id of parent block.
func (h *Header) ParentID() ledger.Bytes32 {
	return h.body.ParentID
}

// Number returns sequential number of this block.
func (h *Header) Number() uint32 {
	if h.body.ParentID.IsZero() {
		return 0
	}
	// inferred from parent id
	return Number(h.body.ParentID) + 1
}

// Timestamp returns timestamp of this block, in seconds.
func (h *Header) Timestamp() uint64 {
	return h.body.Timestamp
}

// TxsRoot returns root hash of txs contained in this block.
func (h *Header) TxsRoot() ledger.Bytes32 {
	return h.body.TxsRoot
}

// StateRoot returns the hash of the state changes made by this block.
func (h *Header) StateRoot() ledger.Bytes32 {
	return h.body.StateRoot
}

// ReceiptsRoot returns root hash of receipts.
func (h *Header) ReceiptsRoot() ledger.Bytes32 {
	return h.body.ReceiptsRoot
}

// ID computes id of block.
// The first 4 bytes of the id are the block number.
func (h *Header) ID() (id ledger.Bytes32) {
	if cached := h.cache.id.Load(); cached != nil {
		return *cached
	}
	id = ledger.Blake2bFn(func(w io.Writer) {
		rlp.Encode(w, &h.body)
	})
	binary.BigEndian.PutUint32(id[:], h.Number())
	h.cache.id.Store(&id)
	return
}

// EncodeRLP implements rlp.Encoder
func (h *Header) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &h.body)
}

// DecodeRLP implements rlp.Decoder
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	var body headerBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	h.body = body
	h.cache.id.Store(nil)
	return nil
}

func (h *Header) String() string {
	return fmt.Sprintf(`Header(%v):
	Number:         %v
	ParentID:       %v
	Timestamp:      %v
	TxsRoot:        %v
	StateRoot:      %v
	ReceiptsRoot:   %v`, h.ID(), h.Number(), h.body.ParentID, h.body.Timestamp,
		h.body.TxsRoot, h.body.StateRoot, h.body.ReceiptsRoot)
}

// Number extract block number from block id.
func Number(blockID ledger.Bytes32) uint32 {
	// first 4 bytes are over written by block number (big endian).
	return binary.BigEndian.Uint32(blockID[:])
}
