// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/peer"
)

// inbound conns waiting for Accept
const acceptQueueSize = 8

// Peer - a statically configured remote device
type Peer struct {
	Id        string
	Address   string
	PublicKey []byte // CURVE key, required when PrivateKey is set
}

// Config - link settings
type Config struct {
	Id         string // sent as the socket identity
	Listen     string // empty for outbound only
	PrivateKey []byte // enables CURVE when set
	Peers      []Peer
}

// Link - peer.Link over ZeroMQ
type Link struct {
	log    *logger.L
	config Config
	peers  map[string]Peer
	router *pump

	sync.Mutex
	inbound map[string]*conn
	accept  chan *conn
}

var _ peer.Link = (*Link)(nil)

// NewLink - bind the listen address, if any
func NewLink(config Config) (*Link, error) {
	if "" == config.Id {
		return nil, fault.ErrMissingParameters
	}
	if nil != config.PrivateKey && privateLength != len(config.PrivateKey) {
		return nil, fault.ErrInvalidPrivateKeyFile
	}

	l := &Link{
		log:     logger.New("zmqlink"),
		config:  config,
		peers:   make(map[string]Peer),
		inbound: make(map[string]*conn),
		accept:  make(chan *conn, acceptQueueSize),
	}
	for _, p := range config.Peers {
		l.peers[p.Id] = p
	}

	if "" != config.Listen {
		address, v6 := canonicalAddress(config.Listen)
		socket, err := newServerSocket(config.PrivateKey, v6)
		if nil != err {
			return nil, err
		}
		if err := socket.Bind(address); nil != err {
			l.log.Errorf("cannot bind: %q  error: %s", address, err)
			socket.Close()
			return nil, err
		}
		l.log.Infof("bind: %q  IPv6: %t", address, v6)
		l.router = newPump(l.log, socket, l.route)
	}
	return l, nil
}

// Discover - the configured peers, then wait for ctx
func (l *Link) Discover(ctx context.Context, found chan<- string) error {
	ids := make([]string, 0, len(l.peers))
	for id := range l.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		select {
		case found <- id:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// Connect - open a DEALER socket to a configured peer and wait for the
// TCP connection
func (l *Link) Connect(ctx context.Context, peerId string) (peer.Conn, error) {
	remote, ok := l.peers[peerId]
	if !ok {
		return nil, fault.ErrNotFoundPeer
	}

	address, v6 := canonicalAddress(remote.Address)
	socket, err := newClientSocket(l.config.Id, l.config.PrivateKey, remote.PublicKey, v6)
	if nil != err {
		return nil, err
	}

	mon, err := NewMonitor(socket, zmq.EVENT_CONNECTED)
	if nil != err {
		socket.Close()
		return nil, err
	}
	defer mon.Close()

	if err := socket.Connect(address); nil != err {
		socket.Close()
		return nil, err
	}
	if err := waitForEvent(ctx, mon, zmq.EVENT_CONNECTED); nil != err {
		l.log.Warnf("connect: %s at: %q  error: %s", peerId, address, err)
		socket.Close()
		return nil, fmt.Errorf("%w: %s", fault.ErrConnectionFailed, err)
	}

	c := newConn(peerId, nil)
	c.pump = newPump(l.log, socket, func(parts [][]byte) {
		if 1 != len(parts) || !c.deliver(parts[0]) {
			l.log.Debugf("from: %s  dropped %d part message", peerId, len(parts))
		}
	})
	c.release = c.pump.stop

	l.log.Infof("connected to: %s at: %q", peerId, address)
	return c, nil
}

// Accept - next device to send on the ROUTER socket
func (l *Link) Accept(ctx context.Context) (peer.Conn, error) {
	if nil == l.router {
		return nil, fault.ErrNotConnected
	}
	select {
	case c := <-l.accept:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close - close the listener and every inbound conn
func (l *Link) Close() {
	l.Lock()
	conns := make([]*conn, 0, len(l.inbound))
	for _, c := range l.inbound {
		conns = append(conns, c)
	}
	l.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if nil != l.router {
		l.router.stop()
	}
}

// called by the ROUTER pump with [identity, frame]
func (l *Link) route(parts [][]byte) {
	if 2 != len(parts) {
		l.log.Debugf("dropped %d part message", len(parts))
		return
	}
	identity := string(parts[0])

	l.Lock()
	c, ok := l.inbound[identity]
	if !ok || c.isClosed() {
		c = newConn(identity, append([]byte(nil), parts[0]...))
		c.pump = l.router
		c.release = l.remover(identity, c)

		select {
		case l.accept <- c:
			l.inbound[identity] = c
			l.log.Infof("inbound from: %s", identity)
		default:
			l.Unlock()
			l.log.Warnf("accept queue full, dropped: %s", identity)
			return
		}
	}
	l.Unlock()

	if !c.deliver(parts[1]) {
		l.log.Debugf("from: %s  dropped frame", identity)
	}
}

func (l *Link) remover(identity string, c *conn) func() {
	return func() {
		l.Lock()
		if current, ok := l.inbound[identity]; ok && current == c {
			delete(l.inbound, identity)
		}
		l.Unlock()
	}
}
