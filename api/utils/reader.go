// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
)

// WithReader pins the chain head for the duration of f.
func WithReader(c *chain.Chain, f func(r *chain.Reader) error) error {
	r, err := c.NewReader()
	if err != nil {
		return err
	}
	defer r.Release()
	return f(r)
}

// PoolIDVar parses the {id} route variable.
func PoolIDVar(req *http.Request) (ledger.PoolID, error) {
	id, err := ledger.ParsePoolID(mux.Vars(req)["id"])
	if err != nil {
		return 0, BadRequest(err, "id")
	}
	return id, nil
}

// AddressVar parses the named route variable as an address.
func AddressVar(req *http.Request, name string) (ledger.Address, error) {
	addr, err := ledger.ParseAddress(mux.Vars(req)[name])
	if err != nil {
		return "", BadRequest(err, name)
	}
	return addr, nil
}
