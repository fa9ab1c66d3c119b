// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"encoding/binary"
	"strconv"
)

// PoolID identifies a pool.
type PoolID uint64

// ParsePoolID parses a decimal pool id.
func ParsePoolID(s string) (PoolID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return PoolID(id), nil
}

// String returns the decimal form of the id.
func (id PoolID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Bytes returns the big-endian encoding of the id.
func (id PoolID) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}
