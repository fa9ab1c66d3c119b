// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/pkg/errors"

var errKnownTx = errors.New("known transaction")

// IsErrKnownTx returns whether err means the tx is already in the chain.
func IsErrKnownTx(err error) bool {
	return errors.Cause(err) == errKnownTx
}

// badTxError is returned for malformed txs.
type badTxError struct {
	msg string
}

func (e badTxError) Error() string {
	return "bad tx: " + e.msg
}

// txRejectedError is returned for well-formed txs the pool refuses.
type txRejectedError struct {
	msg string
}

func (e txRejectedError) Error() string {
	return "tx rejected: " + e.msg
}

// IsBadTx returns whether err is a bad tx error.
func IsBadTx(err error) bool {
	_, ok := errors.Cause(err).(badTxError)
	return ok
}

// IsTxRejected returns whether err is a tx rejection.
func IsTxRejected(err error) bool {
	_, ok := errors.Cause(err).(txRejectedError)
	return ok
}
