// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blocks

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
)

type Blocks struct {
	chain *chain.Chain
}

func New(c *chain.Chain) *Blocks {
	return &Blocks{c}
}

// parseRevision resolves "best", a block number or a block id.
func (b *Blocks) parseRevision(revision string) (*block.Block, error) {
	if revision == "" || revision == "best" {
		return b.chain.BestBlock(), nil
	}
	var id ledger.Bytes32
	if len(revision) == 64 || len(revision) == 66 {
		parsed, err := ledger.ParseBytes32(revision)
		if err != nil {
			return nil, utils.BadRequest(err, "revision")
		}
		id = parsed
	} else {
		n, err := strconv.ParseUint(revision, 0, 32)
		if err != nil {
			return nil, utils.BadRequest(err, "revision")
		}
		if id, err = b.chain.GetBlockIDByNumber(uint32(n)); err != nil {
			if b.chain.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
	}
	blk, err := b.chain.GetBlock(id)
	if err != nil {
		if b.chain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return blk, nil
}

func (b *Blocks) handleGetBlock(w http.ResponseWriter, req *http.Request) error {
	blk, err := b.parseRevision(mux.Vars(req)["revision"])
	if err != nil {
		return err
	}
	if blk == nil {
		return utils.WriteJSON(w, nil)
	}

	expanded := req.URL.Query().Get("expanded")
	if expanded != "" && expanded != "false" && expanded != "true" {
		return utils.BadRequest(errors.New("should be boolean"), "expanded")
	}
	if expanded != "true" {
		return utils.WriteJSON(w, buildJSONCollapsedBlock(blk))
	}
	receipts, err := b.chain.GetBlockReceipts(blk.Header().ID())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, buildJSONExpandedBlock(blk, receipts))
}

func (b *Blocks) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/{revision}").
		Methods(http.MethodGet).
		Name("GET /blocks/{revision}").
		HandlerFunc(utils.WrapHandlerFunc(b.handleGetBlock))
}
