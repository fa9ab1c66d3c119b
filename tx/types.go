// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/pkg/errors"
)

// Type is the kind of a transaction.
type Type uint8

const (
	TypeFund Type = iota + 1
	TypeDefund
	TypeStake
	TypeUnstake
	TypeDelegate
	TypeUndelegate
	TypePayoutRewards
	TypeWithdrawRewards
	TypeRedelegate
	TypeSlash
)

var typeNames = map[Type]string{
	TypeFund:            "fund",
	TypeDefund:          "defund",
	TypeStake:           "stake",
	TypeUnstake:         "unstake",
	TypeDelegate:        "delegate",
	TypeUndelegate:      "undelegate",
	TypePayoutRewards:   "payout_rewards",
	TypeWithdrawRewards: "withdraw_rewards",
	TypeRedelegate:      "redelegate",
	TypeSlash:           "slash",
}

// ErrTxTypeNotSupported is returned for unknown transaction types.
var ErrTxTypeNotSupported = errors.New("transaction type not supported")

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// NeedsStaker reports whether transactions of the type address a staker.
func (t Type) NeedsStaker() bool {
	switch t {
	case TypeDelegate, TypeUndelegate, TypePayoutRewards, TypeWithdrawRewards, TypeRedelegate, TypeSlash:
		return true
	}
	return false
}

// NeedsTarget reports whether transactions of the type name a second staker.
func (t Type) NeedsTarget() bool {
	return t == TypeRedelegate
}

// NeedsAmount reports whether transactions of the type carry an amount.
func (t Type) NeedsAmount() bool {
	return t != TypeWithdrawRewards
}

// ParseType parses a type name.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrTxTypeNotSupported, "%q", s)
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, ErrTxTypeNotSupported
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
