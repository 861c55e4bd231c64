// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer - sessions between two devices over a Link
//
// a Link is the radio or wire: it discovers remote devices and yields
// a Conn that moves whole frames.  A Session runs the packet protocol
// over one Conn:
//
// * handshake: each side sends a random challenge and proves possession
//   of its device key by signing the other's.  Nothing but handshake,
//   ping and error messages is accepted before the remote is proven
// * reliable send: messages are chunked, each chunk write is retried
//   with exponential backoff and paced by a rate limiter, and Send
//   returns only when the remote acknowledges the whole message
// * health: idle sessions are pinged, no pong tears the session down,
//   stalled reassembly buffers are discarded and reported to the sender
//   as a reassembly timeout
//
// the Manager keeps the registry of live sessions keyed by remote id.
package peer
