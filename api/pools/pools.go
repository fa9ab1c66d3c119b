// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/cache"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool"
)

type projectionKey struct {
	head ledger.Bytes32
	id   ledger.PoolID
}

type Pools struct {
	chain *chain.Chain
	// aggregates are immutable per head block
	projections *cache.LRU[projectionKey, *pool.Pool]
}

func New(c *chain.Chain, cacheSize int) (*Pools, error) {
	projections, err := cache.NewLRU[projectionKey, *pool.Pool](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Pools{chain: c, projections: projections}, nil
}

// withPools runs f on the pools at the best block. It responds 404 when
// the {id} route variable names no pool.
func (p *Pools) withPools(req *http.Request, f func(head ledger.Bytes32, pools *pool.Pools) error) error {
	return utils.WithReader(p.chain, func(r *chain.Reader) error {
		pools, err := r.Pools()
		if err != nil {
			return err
		}
		if _, ok := mux.Vars(req)["id"]; ok {
			id, err := utils.PoolIDVar(req)
			if err != nil {
				return err
			}
			exists, err := pools.Exists(id)
			if err != nil {
				return err
			}
			if !exists {
				return utils.NotFound("pool not found")
			}
		}
		return f(r.Best().Header().ID(), pools)
	})
}

func (p *Pools) getPool(head ledger.Bytes32, pools *pool.Pools, id ledger.PoolID) (*pool.Pool, error) {
	return p.projections.GetOrLoad(projectionKey{head, id}, func(projectionKey) (*pool.Pool, error) {
		return pools.Get(id)
	})
}

func (p *Pools) handleGetParams(w http.ResponseWriter, req *http.Request) error {
	return p.withPools(req, func(_ ledger.Bytes32, pools *pool.Pools) error {
		return utils.WriteJSON(w, pools.Params())
	})
}

func (p *Pools) handleListPools(w http.ResponseWriter, req *http.Request) error {
	return p.withPools(req, func(head ledger.Bytes32, pools *pool.Pools) error {
		ids, err := pools.IDs()
		if err != nil {
			return err
		}
		list := make([]*pool.Pool, 0, len(ids))
		for _, id := range ids {
			agg, err := p.getPool(head, pools, id)
			if err != nil {
				return err
			}
			list = append(list, agg)
		}
		return utils.WriteJSON(w, list)
	})
}

func (p *Pools) handleGetPool(w http.ResponseWriter, req *http.Request) error {
	return p.withPools(req, func(head ledger.Bytes32, pools *pool.Pools) error {
		id, _ := utils.PoolIDVar(req)
		agg, err := p.getPool(head, pools, id)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, agg)
	})
}

func (p *Pools) handleGetFunders(w http.ResponseWriter, req *http.Request) error {
	return p.withPools(req, func(_ ledger.Bytes32, pools *pool.Pools) error {
		id, _ := utils.PoolIDVar(req)
		list, err := pools.FundersList(id)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, list)
	})
}

func (p *Pools) handleGetStakers(w http.ResponseWriter, req *http.Request) error {
	return p.withPools(req, func(_ ledger.Bytes32, pools *pool.Pools) error {
		id, _ := utils.PoolIDVar(req)
		list, err := pools.StakersList(id)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, list)
	})
}

func (p *Pools) handleGetDelegation(w http.ResponseWriter, req *http.Request) error {
	staker, err := utils.AddressVar(req, "staker")
	if err != nil {
		return err
	}
	return p.withPools(req, func(_ ledger.Bytes32, pools *pool.Pools) error {
		id, _ := utils.PoolIDVar(req)
		data, err := pools.DelegationPoolData(id, staker)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, data)
	})
}

func (p *Pools) handleGetDelegator(w http.ResponseWriter, req *http.Request) error {
	staker, err := utils.AddressVar(req, "staker")
	if err != nil {
		return err
	}
	delegator, err := utils.AddressVar(req, "delegator")
	if err != nil {
		return err
	}
	return p.withPools(req, func(_ ledger.Bytes32, pools *pool.Pools) error {
		id, _ := utils.PoolIDVar(req)
		info, err := pools.Delegator(id, staker, delegator)
		if err != nil {
			return err
		}
		if info == nil {
			return utils.NotFound("delegator not found")
		}
		return utils.WriteJSON(w, info)
	})
}

func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /pools").
		HandlerFunc(utils.WrapHandlerFunc(p.handleListPools))
	sub.Path("/params").
		Methods(http.MethodGet).
		Name("GET /pools/params").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetParams))
	sub.Path("/{id}").
		Methods(http.MethodGet).
		Name("GET /pools/{id}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetPool))
	sub.Path("/{id}/funders").
		Methods(http.MethodGet).
		Name("GET /pools/{id}/funders").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetFunders))
	sub.Path("/{id}/stakers").
		Methods(http.MethodGet).
		Name("GET /pools/{id}/stakers").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetStakers))
	sub.Path("/{id}/delegation/{staker}").
		Methods(http.MethodGet).
		Name("GET /pools/{id}/delegation/{staker}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetDelegation))
	sub.Path("/{id}/delegation/{staker}/delegators/{delegator}").
		Methods(http.MethodGet).
		Name("GET /pools/{id}/delegation/{staker}/delegators/{delegator}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetDelegator))
}
