// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
)

// Waiter provides a channel to wait for a signal on.
// A true value read from the channel is a signal, a closed channel a broadcast.
type Waiter interface {
	C() <-chan bool
}

// Signal is a channel based rendezvous point. Signals sent while nobody waits are
// coalesced into one, so a burst of events wakes the waiter once.
type Signal struct {
	l  sync.Mutex
	ch chan bool
}

func (s *Signal) init() {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
}

// Signal wakes one waiter.
func (s *Signal) Signal() {
	s.l.Lock()
	defer s.l.Unlock()

	s.init()
	select {
	case s.ch <- true:
	default:
	}
}

// Broadcast wakes all waiters.
func (s *Signal) Broadcast() {
	s.l.Lock()
	defer s.l.Unlock()

	s.init()
	close(s.ch)
	s.ch = make(chan bool, 1)
}

// NewWaiter returns a Waiter following s.
func (s *Signal) NewWaiter() Waiter {
	s.l.Lock()
	s.init()
	ref := s.ch
	s.l.Unlock()

	return waiterFunc(func() <-chan bool {
		ch := ref

		s.l.Lock()
		ref = s.ch
		s.l.Unlock()

		return ch
	})
}

type waiterFunc func() <-chan bool

func (w waiterFunc) C() <-chan bool {
	return w()
}
