// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package settlement - reconciliation with the issuing authority
//
// redemptions and completed transactions are written to a persistent
// queue while offline and drained once the settlement client is
// reachable.  A token id acknowledged by the authority is recorded so
// it is never submitted again.
package settlement
