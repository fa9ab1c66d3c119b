// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/slot"
	"github.com/poolstake/poold/state"
)

// DefaultUnbondingTime is five days, in seconds.
const DefaultUnbondingTime = 5 * 24 * 60 * 60

// DefaultRedelegationSpells is the default number of redelegations per cooldown.
const DefaultRedelegationSpells = 5

// Params are the chain-wide pool parameters. Zero capacities mean unbounded.
type Params struct {
	MaxFunders              uint64 `json:"max_funders" yaml:"max_funders" toml:"max_funders"`
	MaxStakers              uint64 `json:"max_stakers" yaml:"max_stakers" toml:"max_stakers"`
	UnbondingStakingTime    uint64 `json:"unbonding_staking_time" yaml:"unbonding_staking_time" toml:"unbonding_staking_time"`
	UnbondingDelegationTime uint64 `json:"unbonding_delegation_time" yaml:"unbonding_delegation_time" toml:"unbonding_delegation_time"`
	RedelegationCooldown    uint64 `json:"redelegation_cooldown" yaml:"redelegation_cooldown" toml:"redelegation_cooldown"`
	RedelegationMaxAmount   uint64 `json:"redelegation_max_amount" yaml:"redelegation_max_amount" toml:"redelegation_max_amount"`

	// Authorities may pay out delegation rewards and slash delegators.
	Authorities []ledger.Address `json:"authorities" yaml:"authorities,omitempty" toml:"authorities,omitempty"`
}

// IsAuthority reports whether the account may run the privileged operations.
func (p *Params) IsAuthority(account ledger.Address) bool {
	for _, a := range p.Authorities {
		if a == account {
			return true
		}
	}
	return false
}

// DefaultParams returns the parameters used when genesis sets none.
func DefaultParams() Params {
	return Params{
		MaxFunders:              50,
		MaxStakers:              50,
		UnbondingStakingTime:    DefaultUnbondingTime,
		UnbondingDelegationTime: DefaultUnbondingTime,
		RedelegationCooldown:    DefaultUnbondingTime,
		RedelegationMaxAmount:   DefaultRedelegationSpells,
	}
}

func paramsValue(st *state.State) *slot.Value[*Params] {
	return slot.NewValue[*Params](slot.NewContext(namespace, st), "params")
}

// LoadParams reads the parameters stored in st, or the defaults when none are.
func LoadParams(st *state.State) (Params, error) {
	p, err := paramsValue(st).Get()
	if err != nil {
		return Params{}, errors.Wrap(err, "failed to get params")
	}
	if p == nil {
		return DefaultParams(), nil
	}
	return *p, nil
}

// StoreParams writes the parameters into st.
func StoreParams(st *state.State, p Params) error {
	if err := paramsValue(st).Set(&p); err != nil {
		return errors.Wrap(err, "failed to set params")
	}
	return nil
}
