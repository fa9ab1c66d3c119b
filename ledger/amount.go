// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientAmount is returned by Sub when the subtrahend exceeds the minuend.
	ErrInsufficientAmount = errors.New("insufficient amount")
	// ErrAmountOverflow is returned when a result does not fit in 256 bits.
	ErrAmountOverflow = errors.New("amount overflow")
	// ErrDivisionByZero is returned by MulDiv for a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

var (
	_ json.Marshaler   = Amount{}
	_ json.Unmarshaler = (*Amount)(nil)
	_ rlp.Encoder      = Amount{}
	_ rlp.Decoder      = (*Amount)(nil)
)

// Amount is a non-negative integer quantity in base units.
// The zero value is zero. Arithmetic never wraps.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an amount of v base units.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// ParseAmount parses a canonical decimal string.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, errors.New("empty amount")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return Amount{}, fmt.Errorf("invalid amount %q", s)
		}
	}
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrAmountOverflow
	}
	return r, nil
}

// Sub returns a - b, or ErrInsufficientAmount if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrInsufficientAmount
	}
	return r, nil
}

// MulDiv returns a * mul / div rounded down. The intermediate product is 512 bits wide.
func (a Amount) MulDiv(mul, div Amount) (Amount, error) {
	if div.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var r Amount
	if _, overflow := r.v.MulDivOverflow(&a.v, &mul.v, &div.v); overflow {
		return Amount{}, ErrAmountOverflow
	}
	return r, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// IsZero returns whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Uint64 returns the amount as uint64 and whether it fits.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// String returns the decimal form of the amount.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler, used by yaml and toml decoders.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (a Amount) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, a.v.Bytes())
}

// DecodeRLP implements rlp.Decoder.
func (a *Amount) DecodeRLP(s *rlp.Stream) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) > 32 {
		return ErrAmountOverflow
	}
	if len(b) > 0 && b[0] == 0 {
		return rlp.ErrCanonInt
	}
	a.v.SetBytes(b)
	return nil
}

// Sum adds all amounts.
func Sum(amounts ...Amount) (Amount, error) {
	var (
		total Amount
		err   error
	)
	for _, a := range amounts {
		if total, err = total.Add(a); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
