// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Getter defines methods to read kv.
type Getter interface {
	// Get returns the value for key, or an error satisfying IsNotFound when absent.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	IsNotFound(err error) bool
}

// Putter defines methods to write kv.
type Putter interface {
	Put(key, val []byte) error
	Delete(key []byte) error
}

// Snapshot is a consistent read-only view of a store.
type Snapshot interface {
	Getter
	Release()
}

// Bulk collects writes and applies them atomically on Write.
type Bulk interface {
	Putter
	Len() int
	Write() error
}

// Store defines the full functional kv store.
type Store interface {
	Getter
	Putter

	Snapshot() Snapshot
	Bulk() Bulk
}

// StoreCloser is a store that must be closed.
type StoreCloser interface {
	Store
	Close() error
}

// Get is a helper that returns (nil, nil) when the key is absent.
func Get(g Getter, key []byte) ([]byte, error) {
	val, err := g.Get(key)
	if err != nil {
		if g.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}
