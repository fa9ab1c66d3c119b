// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolstake/poold/ledger"
)

func TestTransactionID(t *testing.T) {
	a := NewBuilder(TypeFund).Origin("alice").Pool(1).Amount(ledger.NewAmount(10)).Build()
	b := NewBuilder(TypeFund).Origin("alice").Pool(1).Amount(ledger.NewAmount(10)).Build()
	c := NewBuilder(TypeFund).Origin("alice").Pool(1).Amount(ledger.NewAmount(10)).Nonce(1).Build()

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.False(t, a.ID().IsZero())

	// an empty target leaves the encoding of other types untouched
	d := NewBuilder(TypeFund).Origin("alice").Pool(1).Amount(ledger.NewAmount(10)).Target("").Build()
	assert.Equal(t, a.ID(), d.ID())
	e := NewBuilder(TypeRedelegate).Origin("dave").Staker("alice").Target("bob").Build()
	f := NewBuilder(TypeRedelegate).Origin("dave").Staker("alice").Target("charlie").Build()
	assert.NotEqual(t, e.ID(), f.ID())
}

func TestTransactionRLP(t *testing.T) {
	f := fuzz.New().NilChance(0).Funcs(func(a *ledger.Amount, c fuzz.Continue) {
		*a = ledger.NewAmount(c.Uint64())
	})
	for range 50 {
		var b body
		f.Fuzz(&b)
		orig := &Transaction{body: b}

		data, err := rlp.EncodeToBytes(orig)
		require.NoError(t, err)
		var dec Transaction
		require.NoError(t, rlp.DecodeBytes(data, &dec))

		assert.Equal(t, orig.ID(), dec.ID())
		assert.Equal(t, orig.Origin(), dec.Origin())
		assert.Equal(t, orig.Amount(), dec.Amount())
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
		err  string
	}{
		{"fund", NewBuilder(TypeFund).Origin("alice").Amount(ledger.NewAmount(1)).Build(), ""},
		{"unknown type", NewBuilder(Type(99)).Origin("alice").Build(), ErrTxTypeNotSupported.Error()},
		{"no origin", NewBuilder(TypeStake).Build(), "origin required"},
		{"delegate without staker", NewBuilder(TypeDelegate).Origin("bob").Build(), "delegate requires a staker"},
		{"fund with staker", NewBuilder(TypeFund).Origin("bob").Staker("alice").Build(), "fund does not take a staker"},
		{"withdraw with amount", NewBuilder(TypeWithdrawRewards).Origin("bob").Staker("alice").Amount(ledger.NewAmount(1)).Build(),
			"withdraw_rewards does not take an amount"},
		{"withdraw", NewBuilder(TypeWithdrawRewards).Origin("bob").Staker("alice").Build(), ""},
		{"redelegate", NewBuilder(TypeRedelegate).Origin("dave").Staker("alice").Target("bob").Amount(ledger.NewAmount(1)).Build(), ""},
		{"redelegate without target", NewBuilder(TypeRedelegate).Origin("dave").Staker("alice").Build(),
			"redelegate requires a target staker"},
		{"delegate with target", NewBuilder(TypeDelegate).Origin("dave").Staker("alice").Target("bob").Build(),
			"delegate does not take a target staker"},
		{"slash", NewBuilder(TypeSlash).Origin("gov").Staker("alice").Amount(ledger.NewAmount(1)).Build(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.err)
			}
		})
	}
}

func TestType(t *testing.T) {
	for ty, name := range typeNames {
		parsed, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, ty, parsed)
	}
	_, err := ParseType("burn")
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)

	raw, err := json.Marshal(struct{ T Type }{TypePayoutRewards})
	require.NoError(t, err)
	assert.Equal(t, `{"T":"payout_rewards"}`, string(raw))
}

func TestRootHash(t *testing.T) {
	a := NewBuilder(TypeFund).Origin("alice").Build()
	b := NewBuilder(TypeStake).Origin("bob").Build()
	assert.NotEqual(t, Transactions{a, b}.RootHash(), Transactions{b, a}.RootHash())
	assert.Equal(t, Transactions{a, b}.RootHash(), Transactions{a, b}.RootHash())
}
