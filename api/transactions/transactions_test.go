// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transactions

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/pool/reverts"
	"github.com/poolstake/poold/test/testchain"
	"github.com/poolstake/poold/tx"
	"github.com/poolstake/poold/txpool"
)

type testServer struct {
	t     *testing.T
	chain *testchain.Chain
	pool  *txpool.TxPool
	url   string
}

func initTransactionServer(t *testing.T) *testServer {
	tc, err := testchain.NewDefault()
	require.NoError(t, err)
	pool := txpool.New(tc.Chain(), txpool.DefaultOptions())
	t.Cleanup(func() {
		pool.Close()
		tc.Close()
	})

	router := mux.NewRouter()
	New(tc.Chain(), pool).Mount(router, "/transactions")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testServer{t, tc, pool, ts.URL}
}

func (s *testServer) do(method, path string, body any) ([]byte, int) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(s.t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(s.t, err)
	return data, res.StatusCode
}

func (s *testServer) send(body any) (ledger.Bytes32, int) {
	data, code := s.do(http.MethodPost, "/transactions", body)
	if code != http.StatusOK {
		return ledger.Bytes32{}, code
	}
	var res struct {
		ID ledger.Bytes32 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(data, &res))
	return res.ID, code
}

func TestSendAndReceipt(t *testing.T) {
	s := initTransactionServer(t)

	fund := tx.TypeFund
	amount := ledger.NewAmount(25)
	id, code := s.send(&SendTx{Type: &fund, Origin: "alice", PoolID: 0, Amount: &amount, Nonce: 1})
	require.Equal(t, http.StatusOK, code)
	expected := tx.NewBuilder(tx.TypeFund).Origin("alice").Pool(0).Amount(amount).Nonce(1).Build()
	assert.Equal(t, expected.ID(), id)

	raw, err := rlp.EncodeToBytes(tx.NewBuilder(tx.TypeDefund).Origin("bob").Pool(0).Amount(amount).Nonce(1).Build())
	require.NoError(t, err)
	rawID, code := s.send(&SendTx{Raw: hexutil.Encode(raw)})
	require.Equal(t, http.StatusOK, code)

	data, code := s.do(http.MethodGet, "/transactions/pending", nil)
	require.Equal(t, http.StatusOK, code)
	var pending []*Transaction
	require.NoError(t, json.Unmarshal(data, &pending))
	require.Len(t, pending, 2)
	assert.Nil(t, pending[0].Block)
	assert.Equal(t, tx.TypeFund, pending[0].Type)

	// no receipt while pending
	data, code = s.do(http.MethodGet, "/transactions/"+id.String()+"/receipt", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null\n", string(data))

	blk, _, err := s.chain.MintBlockAt(s.chain.Chain().BestBlock().Header().Timestamp()+1, s.pool.Executables()...)
	require.NoError(t, err)

	data, code = s.do(http.MethodGet, "/transactions/"+id.String()+"/receipt", nil)
	require.Equal(t, http.StatusOK, code)
	var receipt Receipt
	require.NoError(t, json.Unmarshal(data, &receipt))
	assert.Equal(t, reverts.OK, receipt.Code)
	assert.Equal(t, blk.Header().ID(), receipt.Block.ID)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "25", receipt.Events[0].Amount.String())

	data, code = s.do(http.MethodGet, "/transactions/"+rawID.String()+"/receipt", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &receipt))
	assert.Equal(t, reverts.InsufficientFunderBalance, receipt.Code)
	assert.Equal(t, reverts.InsufficientFunderBalance.String(), receipt.CodeName)

	data, code = s.do(http.MethodGet, "/transactions/"+id.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var included Transaction
	require.NoError(t, json.Unmarshal(data, &included))
	assert.Equal(t, ledger.Address("alice"), included.Origin)
	require.NotNil(t, included.Block)
	assert.Equal(t, uint32(1), included.Block.Number)

	// resubmitting an included tx is refused
	_, code = s.send(&SendTx{Type: &fund, Origin: "alice", PoolID: 0, Amount: &amount, Nonce: 1})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSendBadRequests(t *testing.T) {
	s := initTransactionServer(t)
	fund := tx.TypeFund

	tests := []struct {
		name string
		body any
	}{
		{"empty", &SendTx{}},
		{"bad raw", &SendTx{Raw: "0x01zz"}},
		{"no origin", &SendTx{Type: &fund}},
		{"unknown field", map[string]string{"foo": "bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := s.send(tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}

	data, code := s.do(http.MethodGet, "/transactions/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, code, string(data))
	data, code = s.do(http.MethodGet, "/transactions/"+ledger.Bytes32{1}.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null\n", string(data))
}
