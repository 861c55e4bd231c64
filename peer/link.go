// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
)

// Conn - an ordered frame stream to one remote device
//
// Write and Read may be called from different goroutines.  Read must
// return when ctx is done or the connection is closed.
type Conn interface {
	Write(ctx context.Context, frame []byte) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
	RemoteId() string
}

// Link - the transport that reaches other devices
type Link interface {
	// send ids of reachable devices to found until ctx is done
	Discover(ctx context.Context, found chan<- string) error
	Connect(ctx context.Context, peerId string) (Conn, error)
	Accept(ctx context.Context) (Conn, error)
}
