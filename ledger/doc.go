// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger holds the primitive types shared by every component: amounts, account
// addresses, pool identifiers and the hashing used to derive storage keys.
package ledger
