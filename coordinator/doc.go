// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coordinator - drives a value transfer end to end
//
// sender:
//
//   select tokens -> Initiated -> sign -> Signed -> unspent and
//   duplicate checks -> Verifying -> Pending -> transfer over the
//   session -> receiver signature -> Completed with the tokens marked
//   spent in the same storage batch
//
// receiver:
//
//   verify sender and tokens -> sign -> store tokens and transaction
//   in one batch -> payment response
//
// any failure moves the transaction to Failed with its reason and
// releases the reserved tokens, the store is never left with a
// completed transaction whose tokens are unspent.
//
// redemptions take the tokens out of the wallet and stay Pending until
// the settlement queue reports the result.
package coordinator
