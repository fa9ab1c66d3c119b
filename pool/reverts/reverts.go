// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts defines the rejections a transaction can end with. A revert is a
// user facing outcome carrying a result code; any other error is an internal failure.
package reverts

import (
	"errors"
	"fmt"
)

// Code is the machine checkable result of a transaction. Zero means success.
type Code uint32

const (
	OK Code = iota
	PoolNotFound
	InsufficientFunds
	InsufficientFunderBalance
	InsufficientStakerBalance
	InsufficientDelegation
	SelfDelegationForbidden
	StakerNotFound
	FunderListFull
	StakerListFull
	InvalidAmount
	NotADelegator
	NoDelegation
	UnknownTransaction
	RedelegationOnCooldown
	Unauthorized

	Internal Code = 255
)

var codeNames = map[Code]string{
	OK:                        "OK",
	PoolNotFound:              "PoolNotFound",
	InsufficientFunds:         "InsufficientFunds",
	InsufficientFunderBalance: "InsufficientFunderBalance",
	InsufficientStakerBalance: "InsufficientStakerBalance",
	InsufficientDelegation:    "InsufficientDelegation",
	SelfDelegationForbidden:   "SelfDelegationForbidden",
	StakerNotFound:            "StakerNotFound",
	FunderListFull:            "FunderListFull",
	StakerListFull:            "StakerListFull",
	InvalidAmount:             "InvalidAmount",
	NotADelegator:             "NotADelegator",
	NoDelegation:              "NoDelegation",
	UnknownTransaction:        "UnknownTransaction",
	RedelegationOnCooldown:    "RedelegationOnCooldown",
	Unauthorized:              "Unauthorized",
	Internal:                  "Internal",
}

// String returns the name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// ErrRevert is a rejected precondition.
type ErrRevert struct {
	code    Code
	message string
}

// New creates a revert with the given code.
func New(code Code, format string, args ...any) *ErrRevert {
	return &ErrRevert{
		code:    code,
		message: fmt.Sprintf(format, args...),
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// Code returns the result code of the revert.
func (e *ErrRevert) Code() Code {
	return e.code
}

// Is matches any revert with the same code, so errors.Is(err, reverts.ErrPoolNotFound) works
// regardless of the message.
func (e *ErrRevert) Is(target error) bool {
	var t *ErrRevert
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// Sentinels for errors.Is matching.
var (
	ErrPoolNotFound              = New(PoolNotFound, "pool not found")
	ErrInsufficientFunds         = New(InsufficientFunds, "insufficient funds")
	ErrInsufficientFunderBalance = New(InsufficientFunderBalance, "insufficient funder balance")
	ErrInsufficientStakerBalance = New(InsufficientStakerBalance, "insufficient staker balance")
	ErrInsufficientDelegation    = New(InsufficientDelegation, "insufficient delegation")
	ErrSelfDelegationForbidden   = New(SelfDelegationForbidden, "self delegation is forbidden")
	ErrStakerNotFound            = New(StakerNotFound, "staker not found")
	ErrFunderListFull            = New(FunderListFull, "funder list is full")
	ErrStakerListFull            = New(StakerListFull, "staker list is full")
	ErrInvalidAmount             = New(InvalidAmount, "amount must be positive")
	ErrNotADelegator             = New(NotADelegator, "not a delegator")
	ErrNoDelegation              = New(NoDelegation, "staker has no delegation")
	ErrUnknownTransaction        = New(UnknownTransaction, "unknown transaction type")
	ErrRedelegationOnCooldown    = New(RedelegationOnCooldown, "redelegation on cooldown")
	ErrUnauthorized              = New(Unauthorized, "account is not a pool authority")
)

// IsRevertErr returns whether err is, or wraps, a revert.
func IsRevertErr(err error) bool {
	if err == nil {
		return false
	}
	var ve *ErrRevert
	return errors.As(err, &ve)
}

// CodeOf maps an error to its result code: OK for nil, the revert code for reverts,
// Internal for everything else.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.code
	}
	return Internal
}
