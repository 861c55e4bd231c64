// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package authority - issues offline tokens against settled balances
// and redeems them
//
// redemption is the definitive double spend check: a token id is
// accepted once, and the total redeemed against an issued root token
// can never exceed the amount the root was issued for, however the
// holders divided it
package authority
