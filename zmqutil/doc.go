// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zmqutil - a peer.Link over ZeroMQ for wired and bench
// deployments
//
// a Link binds a ROUTER socket for inbound sessions and opens a
// DEALER socket per outbound session.  The DEALER identity is the
// local device id so the ROUTER side can tell its peers apart.
// Each socket is owned by a single pump goroutine since ZeroMQ
// sockets must not be shared between threads.
//
// when a private key is configured every socket uses CURVE
// encryption, a peer's public key is then required to connect to it.
package zmqutil
