// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk data store
//
// maintain separate pools of a number of elements in key->value form
//
// This maintains a LevelDB database split into a series of tables.
// Each table is defined by a prefix byte that is obtained from the
// prefix tag in the struct defining the available tables.
//
// Notes:
// 1. each separate pool has a single byte prefix (to spread the keys in LevelDB)
// 2. ++           = concatenation of byte data
// 3. token id     = UUID string bytes
// 4. tx id        = UUID string bytes
// 5. amount       = big endian uint64 (8 bytes)
//
// Wallet device:
//
//   T ++ token id              - locally held tokens
//                                data: packed token
//   X ++ tx id                 - local transactions
//                                data: packed transaction
//   W ++ name                  - wallet state (settled balance, recharge settings, last sync)
//                                data: packed wallet state
//   Q ++ r ++ tx id            - redemptions waiting for settlement
//                                data: packed tokens
//   Q ++ s ++ tx id            - completed transactions waiting for upload
//                                data: packed transaction
//   R ++ token id              - tokens the authority acknowledged
//                                data: redemption transaction hash
//
// Authority:
//
//   R ++ token id              - tokens already redeemed
//                                data: wallet id ++ redemption transaction hash
//   B ++ claim id              - amount redeemed against a root token or any
//                                sub-claim divided from it
//                                data: amount
//   L ++ user id               - settled balances
//                                data: amount
//   S ++ wallet id ++ 0x00 ++ tx id - synchronised transaction records
//                                data: packed transaction
package storage
