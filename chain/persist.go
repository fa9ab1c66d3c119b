// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/tx"
)

const (
	stateBucket   = kv.Bucket("s")
	blockBucket   = kv.Bucket("b")
	receiptBucket = kv.Bucket("r")
	numberBucket  = kv.Bucket("n")
	txBucket      = kv.Bucket("t")
	metaBucket    = kv.Bucket("m")
)

var (
	bestBlockKey = []byte("best")
	genesisKey   = []byte("genesis")
)

// TxLocation locates a tx in the chain.
type TxLocation struct {
	BlockID ledger.Bytes32
	// Index of the tx in the block
	Index uint64
}

// BlockReceipts is everything applying a block produced besides state.
type BlockReceipts struct {
	Receipts tx.Receipts
	// Settled holds the unbonding releases made after the txs.
	Settled []*tx.Event
}

// RootHash digests the receipts.
func (r *BlockReceipts) RootHash() ledger.Bytes32 {
	data, _ := rlp.EncodeToBytes(r)
	return ledger.Blake2b(data)
}

func numberKey(n uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], n)
	return k[:]
}

func saveRLP(w kv.Putter, key []byte, val any) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, data)
}

func loadRLP(r kv.Getter, key []byte, val any) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(data, val)
}

func loadBlock(r kv.Getter, id ledger.Bytes32) (*block.Block, error) {
	var b block.Block
	if err := loadRLP(blockBucket.NewGetter(r), id[:], &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func loadBlockID(r kv.Getter, key []byte, bucket kv.Bucket) (ledger.Bytes32, error) {
	data, err := bucket.NewGetter(r).Get(key)
	if err != nil {
		return ledger.Bytes32{}, err
	}
	var id ledger.Bytes32
	copy(id[:], data)
	return id, nil
}

func loadBestBlock(r kv.Getter) (*block.Block, error) {
	id, err := loadBlockID(r, bestBlockKey, metaBucket)
	if err != nil {
		return nil, err
	}
	return loadBlock(r, id)
}

// saveBlock writes the block with its receipts and indexes, and makes it the best block.
func saveBlock(w kv.Putter, b *block.Block, receipts *BlockReceipts) error {
	id := b.Header().ID()
	if err := saveRLP(blockBucket.NewPutter(w), id[:], b); err != nil {
		return err
	}
	if err := saveRLP(receiptBucket.NewPutter(w), id[:], receipts); err != nil {
		return err
	}
	if err := numberBucket.NewPutter(w).Put(numberKey(b.Header().Number()), id[:]); err != nil {
		return err
	}
	for i, t := range b.Transactions() {
		txID := t.ID()
		if err := saveRLP(txBucket.NewPutter(w), txID[:], &TxLocation{BlockID: id, Index: uint64(i)}); err != nil {
			return err
		}
	}
	return metaBucket.NewPutter(w).Put(bestBlockKey, id[:])
}
