// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"errors"
	"strings"
)

// MaxAddressLength bounds the size of an address accepted from the outside.
const MaxAddressLength = 128

// Address identifies an account. It is opaque, two addresses are equal only if their
// strings are equal. The zero value means "no address".
type Address string

// ParseAddress validates s and returns it as an address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", errors.New("empty address")
	}
	if len(s) > MaxAddressLength {
		return "", errors.New("address too long")
	}
	if strings.TrimSpace(s) != s {
		return "", errors.New("address has surrounding spaces")
	}
	return Address(s), nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String implements the stringer interface.
func (a Address) String() string {
	return string(a)
}

// Bytes returns byte slice form of address.
func (a Address) Bytes() []byte {
	return []byte(a)
}

// IsZero returns whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}
