// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package boltdb implements kv.Store on top of bbolt, as an alternative to leveldb for
// single-file deployments.
package boltdb

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/poolstake/poold/kv"
)

var _ kv.StoreCloser = (*BoltDB)(nil)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("boltdb: not found")

var bucketName = []byte("kv")

const initialMmapSize = 16 << 20

// BoltDB wraps a bolt db with a single bucket.
type BoltDB struct {
	db *bolt.DB
}

// New opens or creates the db file at path.
func New(path string) (*BoltDB, error) {
	// a write that needs to remap the file waits for open snapshots
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         time.Second,
		InitialMmapSize: initialMmapSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &BoltDB{db: db}, nil
}

// IsNotFound to check if the error returned by Get indicates key not found.
func (b *BoltDB) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Get retrieve value for given key.
func (b *BoltDB) Get(key []byte) (val []byte, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		val, err = get(tx, key)
		return err
	})
	return
}

// Has returns whether a key exists.
func (b *BoltDB) Has(key []byte) (has bool, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		has = tx.Bucket(bucketName).Get(key) != nil
		return nil
	})
	return
}

// Put save value fo give key.
func (b *BoltDB) Put(key, val []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, val)
	})
}

// Delete deletes the give key and its value.
func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

// Snapshot opens a read transaction that lives until Release.
func (b *BoltDB) Snapshot() kv.Snapshot {
	tx, err := b.db.Begin(false)
	return &snapshot{tx, err}
}

// Bulk buffers writes and applies them in one update transaction.
func (b *BoltDB) Bulk() kv.Bulk {
	return &bulk{db: b.db}
}

// Close closes the db.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func get(tx *bolt.Tx, key []byte) ([]byte, error) {
	val := tx.Bucket(bucketName).Get(key)
	if val == nil {
		return nil, ErrNotFound
	}
	// bolt owns the returned memory only while the transaction is open
	return bytes.Clone(val), nil
}

type snapshot struct {
	tx  *bolt.Tx
	err error
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return get(s.tx, key)
}

func (s *snapshot) Has(key []byte) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.tx.Bucket(bucketName).Get(key) != nil, nil
}

func (s *snapshot) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *snapshot) Release() {
	if s.tx != nil {
		_ = s.tx.Rollback()
	}
}

type op struct {
	key, val []byte
	del      bool
}

type bulk struct {
	db  *bolt.DB
	ops []op
}

func (b *bulk) Put(key, val []byte) error {
	b.ops = append(b.ops, op{key: bytes.Clone(key), val: bytes.Clone(val)})
	return nil
}

func (b *bulk) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: bytes.Clone(key), del: true})
	return nil
}

func (b *bulk) Len() int {
	return len(b.ops)
}

func (b *bulk) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		for _, op := range b.ops {
			var err error
			if op.del {
				err = bkt.Delete(op.key)
			} else {
				err = bkt.Put(op.key, op.val)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = b.ops[:0]
	return nil
}
