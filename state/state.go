// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state provides a journaled view over a kv store. Writes stay in memory until
// staged and committed, and can be reverted to any checkpoint.
package state

import (
	"bytes"
	"sort"

	"github.com/poolstake/poold/kv"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return "state: " + e.cause.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// State manages key/value slots on top of a kv getter.
// A nil or empty value means the slot is unset.
type State struct {
	src kv.Getter
	sm  *stackedmap.StackedMap[ledger.Bytes32, []byte]
}

// New create a state object reading through src.
func New(src kv.Getter) *State {
	s := &State{src: src}
	s.sm = stackedmap.New(s.load)
	return s
}

func (s *State) load(key ledger.Bytes32) ([]byte, bool, error) {
	val, err := kv.Get(s.src, key[:])
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// GetRaw returns the raw value of the slot, nil if unset.
func (s *State) GetRaw(key ledger.Bytes32) ([]byte, error) {
	val, _, err := s.sm.Get(key)
	if err != nil {
		return nil, &Error{err}
	}
	return val, nil
}

// SetRaw sets the raw value of the slot. An empty value clears it.
func (s *State) SetRaw(key ledger.Bytes32, val []byte) {
	if len(val) == 0 {
		val = nil
	}
	s.sm.Put(key, val)
}

// Delete clears the slot.
func (s *State) Delete(key ledger.Bytes32) {
	s.sm.Put(key, nil)
}

// EncodeValue sets slot value encoded by given enc method.
func (s *State) EncodeValue(key ledger.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRaw(key, raw)
	return nil
}

// DecodeValue gets and decodes slot value. dec receives nil for an unset slot.
func (s *State) DecodeValue(key ledger.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRaw(key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
	if s.sm.Depth() == 0 {
		s.sm.Push()
	}
}

// Stage collects the net changes made so far, ordered by key.
func (s *State) Stage() *Stage {
	changes := make(map[ledger.Bytes32][]byte)
	s.sm.Journal(func(key ledger.Bytes32, val []byte) bool {
		changes[key] = val
		return true
	})

	stage := &Stage{changes: make([]change, 0, len(changes))}
	for k, v := range changes {
		stage.changes = append(stage.changes, change{k, v})
	}
	sort.Slice(stage.changes, func(i, j int) bool {
		return bytes.Compare(stage.changes[i].key[:], stage.changes[j].key[:]) < 0
	})
	return stage
}
