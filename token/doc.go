// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package token - offline bearer tokens
//
// A root token is signed by the issuer over
//
//   id | amount | issuer | issuedAt | expiresAt
//
// A holder makes change by dividing a token: a division record
//
//   parentId | sequence | amount | timestamp
//
// is signed by the holder and appended to the parent.  Each record
// yields a sub-claim whose id is derived from the record, so any
// verifier can walk the chain from the issued root to the claim and
// check every link.  The issuer signature of a sub-claim is the
// signature of its root.
package token
