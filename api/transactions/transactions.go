// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transactions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/metrics"
	"github.com/poolstake/poold/tx"
	"github.com/poolstake/poold/txpool"
)

var metricTxSubmitCount = metrics.LazyLoadCounterVec("api_tx_submit_count", []string{"result"})

type Transactions struct {
	chain *chain.Chain
	pool  *txpool.TxPool
}

func New(c *chain.Chain, pool *txpool.TxPool) *Transactions {
	return &Transactions{
		c,
		pool,
	}
}

// locate returns the included tx with its receipt and header, or nils if unknown.
func (t *Transactions) locate(txID ledger.Bytes32) (*tx.Transaction, *tx.Receipt, *block.Header, error) {
	receipt, loc, err := t.chain.GetTransactionReceipt(txID)
	if err != nil {
		if t.chain.IsNotFound(err) {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, err
	}
	blk, err := t.chain.GetBlock(loc.BlockID)
	if err != nil {
		return nil, nil, nil, err
	}
	return blk.Transactions()[loc.Index], receipt, blk.Header(), nil
}

func (t *Transactions) handleSendTransaction(w http.ResponseWriter, req *http.Request) error {
	var send SendTx
	if err := utils.ParseJSON(req.Body, &send); err != nil {
		return utils.BadRequest(err, "body")
	}
	trx, err := send.decode()
	if err != nil {
		return utils.BadRequest(err, "tx")
	}

	if err := t.pool.Add(trx); err != nil {
		metricTxSubmitCount().AddWithLabel(1, map[string]string{"result": "rejected"})
		if txpool.IsBadTx(err) {
			return utils.BadRequest(err, "bad tx")
		}
		if txpool.IsTxRejected(err) || txpool.IsErrKnownTx(err) {
			return utils.Forbidden(err, "rejected tx")
		}
		return err
	}
	metricTxSubmitCount().AddWithLabel(1, map[string]string{"result": "accepted"})
	return utils.WriteJSON(w, map[string]string{
		"id": trx.ID().String(),
	})
}

func parseTxID(req *http.Request) (ledger.Bytes32, error) {
	txID, err := ledger.ParseBytes32(mux.Vars(req)["id"])
	if err != nil {
		return ledger.Bytes32{}, utils.BadRequest(err, "id")
	}
	return txID, nil
}

func (t *Transactions) handleGetTransactionByID(w http.ResponseWriter, req *http.Request) error {
	txID, err := parseTxID(req)
	if err != nil {
		return err
	}
	trx, _, header, err := t.locate(txID)
	if err != nil {
		return err
	}
	if trx == nil {
		pending := t.pool.Get(txID)
		if pending == nil {
			return utils.WriteJSON(w, nil)
		}
		converted, err := convertTransaction(pending, nil)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, converted)
	}
	converted, err := convertTransaction(trx, header)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, converted)
}

func (t *Transactions) handleGetTransactionReceiptByID(w http.ResponseWriter, req *http.Request) error {
	txID, err := parseTxID(req)
	if err != nil {
		return err
	}
	_, receipt, header, err := t.locate(txID)
	if err != nil {
		return err
	}
	if receipt == nil {
		return utils.WriteJSON(w, nil)
	}
	return utils.WriteJSON(w, convertReceipt(receipt, header))
}

func (t *Transactions) handleGetPending(w http.ResponseWriter, _ *http.Request) error {
	pending := t.pool.Executables()
	out := make([]*Transaction, 0, len(pending))
	for _, trx := range pending {
		converted, err := convertTransaction(trx, nil)
		if err != nil {
			return err
		}
		out = append(out, converted)
	}
	return utils.WriteJSON(w, out)
}

func (t *Transactions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /transactions").
		HandlerFunc(utils.WrapHandlerFunc(t.handleSendTransaction))
	sub.Path("/pending").
		Methods(http.MethodGet).
		Name("GET /transactions/pending").
		HandlerFunc(utils.WrapHandlerFunc(t.handleGetPending))
	sub.Path("/{id}").
		Methods(http.MethodGet).
		Name("GET /transactions/{id}").
		HandlerFunc(utils.WrapHandlerFunc(t.handleGetTransactionByID))
	sub.Path("/{id}/receipt").
		Methods(http.MethodGet).
		Name("GET /transactions/{id}/receipt").
		HandlerFunc(utils.WrapHandlerFunc(t.handleGetTransactionReceiptByID))
}
