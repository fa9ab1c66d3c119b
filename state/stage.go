// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"io"

	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
)

type change struct {
	key ledger.Bytes32
	val []byte
}

// Stage holds the net changes of a state, ready to be committed.
type Stage struct {
	changes []change
}

// Len returns the number of changed slots.
func (s *Stage) Len() int {
	return len(s.changes)
}

// Hash digests the changes. Equal sequences of blocks produce equal hashes.
func (s *Stage) Hash() ledger.Bytes32 {
	return ledger.Blake2bFn(func(w io.Writer) {
		var lenBuf [4]byte
		for _, c := range s.changes {
			w.Write(c.key[:])
			n := len(c.val)
			lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
			w.Write(lenBuf[:])
			w.Write(c.val)
		}
	})
}

// Commit writes the changes into the putter.
func (s *Stage) Commit(p kv.Putter) error {
	for _, c := range s.changes {
		var err error
		if len(c.val) == 0 {
			err = p.Delete(c.key[:])
		} else {
			err = p.Put(c.key[:], c.val)
		}
		if err != nil {
			return &Error{err}
		}
	}
	return nil
}
