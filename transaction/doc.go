// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transaction - local record of a value transfer
//
// state changes:
//
//   Initiated -> Signed -> Verifying -> Pending -> Completed
//
// any non-terminal state may go to Failed or Cancelled.  A Failed
// transaction returns to Initiated only when its failure was
// retryable.  Completed and Cancelled are final.
package transaction
