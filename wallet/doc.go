// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet - the device's local token store
//
// every validate-then-mutate sequence on a token (divide, spend,
// receive) runs while holding that token's lock, and locks for
// several tokens are always taken in id order
package wallet
