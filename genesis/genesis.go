// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds the first block and the initial state of a chain.
package genesis

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/bank"
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool"
	"github.com/poolstake/poold/state"
)

// Genesis to build genesis block.
type Genesis struct {
	builder *Builder
	name    string
}

// Build writes the initial state into st and returns the genesis block.
func (g *Genesis) Build(st *state.State) (*block.Block, error) {
	return g.builder.Build(st)
}

// Name returns network name.
func (g *Genesis) Name() string {
	return g.name
}

// Account is an account funded at genesis.
type Account struct {
	Address ledger.Address `json:"address" yaml:"address" toml:"address"`
	Balance ledger.Amount  `json:"balance" yaml:"balance" toml:"balance"`
}

// Pool is a pool created at genesis.
type Pool struct {
	ID   ledger.PoolID `json:"id" yaml:"id" toml:"id"`
	Name string        `json:"name" yaml:"name" toml:"name"`
}

// CustomGenesis is user customized genesis
type CustomGenesis struct {
	Name       string       `json:"name" yaml:"name" toml:"name"`
	LaunchTime uint64       `json:"launch_time" yaml:"launch_time" toml:"launch_time"`
	Params     *pool.Params `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Pools      []Pool       `json:"pools" yaml:"pools" toml:"pools"`
	Accounts   []Account    `json:"accounts" yaml:"accounts" toml:"accounts"`
}

// NewCustomNet create custom network genesis.
func NewCustomNet(gen *CustomGenesis) (*Genesis, error) {
	params := pool.DefaultParams()
	if gen.Params != nil {
		params = *gen.Params
	}

	seen := make(map[ledger.PoolID]bool, len(gen.Pools))
	for _, p := range gen.Pools {
		if seen[p.ID] {
			return nil, errors.Errorf("pool %d: duplicated", p.ID)
		}
		seen[p.ID] = true
	}
	for _, a := range gen.Accounts {
		if a.Address.IsZero() {
			return nil, errors.New("account address must be set")
		}
		if _, err := ledger.ParseAddress(string(a.Address)); err != nil {
			return nil, err
		}
		if a.Balance.IsZero() {
			return nil, errors.Errorf("%s: balance must be a non-zero integer", a.Address)
		}
	}

	name := gen.Name
	if name == "" {
		name = "customnet"
	}

	builder := new(Builder).
		Timestamp(gen.LaunchTime).
		State(func(st *state.State) error {
			if err := pool.StoreParams(st, params); err != nil {
				return err
			}
			pools, err := pool.New(st, bank.New(st))
			if err != nil {
				return err
			}
			for _, p := range gen.Pools {
				if err := pools.CreatePool(p.ID, p.Name); err != nil {
					return err
				}
			}
			return nil
		}).
		State(func(st *state.State) error {
			accs := bank.New(st)
			for _, a := range gen.Accounts {
				if err := accs.Mint(a.Address, a.Balance); err != nil {
					return errors.Wrapf(err, "%s", a.Address)
				}
			}
			return nil
		})
	return &Genesis{builder: builder, name: name}, nil
}
