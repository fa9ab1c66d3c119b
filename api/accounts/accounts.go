// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool/unbonding"
)

type Accounts struct {
	chain *chain.Chain
}

func New(c *chain.Chain) *Accounts {
	return &Accounts{c}
}

// Account is the free balance of an address at a block.
type Account struct {
	Address ledger.Address `json:"address"`
	Balance ledger.Amount  `json:"balance"`
	Block   uint32         `json:"block"`
}

func (a *Accounts) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	return utils.WithReader(a.chain, func(r *chain.Reader) error {
		bal, err := r.Bank().Balance(addr)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, &Account{
			Address: addr,
			Balance: bal,
			Block:   r.Best().Header().Number(),
		})
	})
}

func (a *Accounts) handleGetUnbondings(w http.ResponseWriter, req *http.Request) error {
	addr, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	return utils.WithReader(a.chain, func(r *chain.Reader) error {
		pools, err := r.Pools()
		if err != nil {
			return err
		}
		items, err := pools.Unbondings(addr)
		if err != nil {
			return err
		}
		if items == nil {
			items = []*unbonding.Item{}
		}
		return utils.WriteJSON(w, items)
	})
}

func (a *Accounts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /accounts/{address}").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetAccount))
	sub.Path("/{address}/unbondings").
		Methods(http.MethodGet).
		Name("GET /accounts/{address}/unbondings").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetUnbondings))
}
