// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/pkg/errors"

	"github.com/poolstake/poold/block"
	"github.com/poolstake/poold/state"
)

// Builder helper to build genesis block.
type Builder struct {
	timestamp  uint64
	stateProcs []func(state *state.State) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// State add a state process
func (b *Builder) State(proc func(state *state.State) error) *Builder {
	b.stateProcs = append(b.stateProcs, proc)
	return b
}

// Build applies the state processes to st and returns the genesis block. The changes
// are left in st for the caller to commit.
func (b *Builder) Build(st *state.State) (*block.Block, error) {
	for _, proc := range b.stateProcs {
		if err := proc(st); err != nil {
			return nil, errors.Wrap(err, "state process")
		}
	}
	return new(block.Builder).
		Timestamp(b.timestamp).
		StateRoot(st.Stage().Hash()).
		Build(), nil
}
