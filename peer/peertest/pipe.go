// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peertest - an in-memory Link for tests
package peertest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/peer"
)

// frames buffered in each direction
const pipeSize = 256

// Network - devices that can all reach each other
type Network struct {
	sync.Mutex
	links map[string]*Link
}

// NewNetwork - an empty network
func NewNetwork() *Network {
	return &Network{
		links: make(map[string]*Link),
	}
}

// Link - the endpoint named id, created on first use
func (n *Network) Link(id string) *Link {
	n.Lock()
	defer n.Unlock()
	if l, ok := n.links[id]; ok {
		return l
	}
	l := &Link{
		id:      id,
		network: n,
		accept:  make(chan *Conn, 4),
	}
	n.links[id] = l
	return l
}

func (n *Network) find(id string) (*Link, bool) {
	n.Lock()
	defer n.Unlock()
	l, ok := n.links[id]
	return l, ok
}

func (n *Network) others(id string) []string {
	n.Lock()
	defer n.Unlock()
	ids := make([]string, 0, len(n.links))
	for other := range n.links {
		if other != id {
			ids = append(ids, other)
		}
	}
	sort.Strings(ids)
	return ids
}

// Link - one device's view of the network
type Link struct {
	id      string
	network *Network
	accept  chan *Conn
}

// Discover - every other device, then wait for ctx
func (l *Link) Discover(ctx context.Context, found chan<- string) error {
	for _, id := range l.network.others(l.id) {
		select {
		case found <- id:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// Connect - pipe to peerId, queued for its Accept
func (l *Link) Connect(ctx context.Context, peerId string) (peer.Conn, error) {
	target, ok := l.network.find(peerId)
	if !ok || peerId == l.id {
		return nil, fault.ErrNotFoundPeer
	}
	local, remote := Pipe(l.id, peerId)
	select {
	case target.accept <- remote:
		return local, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Accept - next inbound pipe
func (l *Link) Accept(ctx context.Context) (peer.Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Conn - one end of a pipe
type Conn struct {
	remoteId string
	in       <-chan []byte
	out      chan<- []byte
	done     chan struct{}
	once     *sync.Once
	failures int64 // atomic
}

// Pipe - connected pair of conns, closing either end closes both
//
// the first conn belongs to device a and reaches b
func Pipe(a string, b string) (*Conn, *Conn) {
	ab := make(chan []byte, pipeSize)
	ba := make(chan []byte, pipeSize)
	done := make(chan struct{})
	once := &sync.Once{}
	return &Conn{remoteId: b, in: ba, out: ab, done: done, once: once},
		&Conn{remoteId: a, in: ab, out: ba, done: done, once: once}
}

// FailWrites - the next n writes return an error
func (c *Conn) FailWrites(n int) {
	atomic.StoreInt64(&c.failures, int64(n))
}

// Write - queue a copy of frame for the other end
func (c *Conn) Write(ctx context.Context, frame []byte) error {
	if atomic.AddInt64(&c.failures, -1) >= 0 {
		return fault.ErrTransmissionFailed
	}
	atomic.StoreInt64(&c.failures, 0)

	select {
	case <-c.done:
		return fault.ErrNotConnected
	default:
	}

	buffer := append([]byte(nil), frame...)
	select {
	case c.out <- buffer:
		return nil
	case <-c.done:
		return fault.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read - next frame from the other end
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.in:
		return frame, nil
	case <-c.done:
		// frames written before the close are still delivered
		select {
		case frame := <-c.in:
			return frame, nil
		default:
		}
		return nil, fault.ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close - close both ends
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

// RemoteId - device at the other end
func (c *Conn) RemoteId() string {
	return c.remoteId
}
