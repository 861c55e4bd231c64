// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"context"
	"sync"

	"github.com/bitmark-inc/offlined/fault"
)

// frames buffered before Read
const inboxSize = 256

// conn - a peer.Conn over a pump
//
// inbound conns share the ROUTER pump and prefix each write with the
// routing id, outbound conns own a DEALER pump
type conn struct {
	remoteId string
	route    []byte
	pump     *pump
	inbox    chan []byte
	done     chan struct{}
	once     sync.Once
	release  func()
}

func newConn(remoteId string, route []byte) *conn {
	return &conn{
		remoteId: remoteId,
		route:    route,
		inbox:    make(chan []byte, inboxSize),
		done:     make(chan struct{}),
	}
}

// Write - send one frame
func (c *conn) Write(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return fault.ErrNotConnected
	default:
	}

	parts := [][]byte{frame}
	if nil != c.route {
		parts = [][]byte{c.route, frame}
	}
	return c.pump.send(ctx, parts)
}

// Read - next frame
func (c *conn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.inbox:
		return frame, nil
	case <-c.done:
		return nil, fault.ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close - release the socket or the routing entry
func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		if nil != c.release {
			c.release()
		}
	})
	return nil
}

// RemoteId - id of the remote device
func (c *conn) RemoteId() string {
	return c.remoteId
}

func (c *conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// false if the frame was dropped
func (c *conn) deliver(frame []byte) bool {
	select {
	case c.inbox <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
