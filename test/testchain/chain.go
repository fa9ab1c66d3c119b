// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testchain runs a devnet chain on an in-memory store for tests.
package testchain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/genesis"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/lvldb"
	"github.com/poolstake/poold/tx"
)

// Chain is a devnet chain whose blocks are minted on demand.
type Chain struct {
	db      *lvldb.LevelDB
	genesis *genesis.Genesis
	chain   *chain.Chain
	nonce   uint64
}

// NewDefault creates a devnet chain.
func NewDefault() (*Chain, error) {
	return NewWithGenesis(genesis.NewDevnet())
}

// NewWithGenesis creates a chain from gene.
func NewWithGenesis(gene *genesis.Genesis) (*Chain, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	c, err := chain.New(db, gene, 0)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Chain{db: db, genesis: gene, chain: c}, nil
}

// Genesis returns the genesis the chain was built from.
func (c *Chain) Genesis() *genesis.Genesis {
	return c.genesis
}

// Chain returns the underlying chain.
func (c *Chain) Chain() *chain.Chain {
	return c.chain
}

// GenesisBlock returns the genesis block.
func (c *Chain) GenesisBlock() *block.Block {
	return c.chain.GenesisBlock()
}

// NewTx builds a tx with a fresh nonce.
func (c *Chain) NewTx(typ tx.Type, origin ledger.Address, id ledger.PoolID, staker ledger.Address, amount uint64) *tx.Transaction {
	c.nonce++
	b := tx.NewBuilder(typ).Origin(origin).Pool(id).Staker(staker).Nonce(c.nonce)
	if amount > 0 {
		b.Amount(ledger.NewAmount(amount))
	}
	return b.Build()
}

// MintBlock applies a block one second after the best block. The block is kept
// even if a tx reverted, but an error is returned.
func (c *Chain) MintBlock(txs ...*tx.Transaction) (*block.Block, error) {
	b, receipts, err := c.MintBlockAt(c.chain.BestBlock().Header().Timestamp()+1, txs...)
	if err != nil {
		return nil, err
	}
	for _, r := range receipts.Receipts {
		if r.Reverted() {
			return nil, errors.Errorf("tx %v reverted: %d %s", r.TxID, r.Code, r.Reason)
		}
	}
	return b, nil
}

// MintBlockAt applies a block at timestamp keeping reverted txs.
func (c *Chain) MintBlockAt(timestamp uint64, txs ...*tx.Transaction) (*block.Block, *chain.BlockReceipts, error) {
	return c.chain.ApplyBlock(context.Background(), timestamp, txs)
}

// Close releases the chain and its store.
func (c *Chain) Close() error {
	c.chain.Close()
	return c.db.Close()
}
