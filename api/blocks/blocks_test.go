// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blocks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/test/testchain"
	"github.com/poolstake/poold/tx"
)

func initBlocksServer(t *testing.T) (*testchain.Chain, *httptest.Server) {
	tc, err := testchain.NewDefault()
	require.NoError(t, err)
	t.Cleanup(func() { tc.Close() })

	router := mux.NewRouter()
	New(tc.Chain()).Mount(router, "/blocks")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return tc, ts
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestBlocks(t *testing.T) {
	tc, ts := initBlocksServer(t)
	fund := tc.NewTx(tx.TypeFund, "alice", 0, "", 10)
	blk, err := tc.MintBlock(fund)
	require.NoError(t, err)

	for _, rev := range []string{"best", "1", blk.Header().ID().String()} {
		body, code := httpGet(t, ts.URL+"/blocks/"+rev)
		require.Equal(t, http.StatusOK, code, rev)
		var got JSONCollapsedBlock
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, blk.Header().ID(), got.ID)
		assert.Equal(t, uint32(1), got.Number)
		assert.Equal(t, tc.GenesisBlock().Header().ID(), got.ParentID)
		assert.Equal(t, fund.ID(), got.Transactions[0])
	}

	body, code := httpGet(t, ts.URL+"/blocks/1?expanded=true")
	require.Equal(t, http.StatusOK, code)
	var expanded JSONExpandedBlock
	require.NoError(t, json.Unmarshal(body, &expanded))
	require.Len(t, expanded.Transactions, 1)
	assert.Equal(t, fund.ID(), expanded.Transactions[0].TxID)
	assert.Equal(t, tx.EventFunded, expanded.Transactions[0].Events[0].Name)
	assert.Empty(t, expanded.Settled)

	body, code = httpGet(t, ts.URL+"/blocks/100")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null\n", string(body))

	_, code = httpGet(t, ts.URL+"/blocks/abc")
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = httpGet(t, ts.URL+"/blocks/1?expanded=1")
	assert.Equal(t, http.StatusBadRequest, code)
}
