// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"context"
	"sync"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/offlined/fault"
)

// queued writes per socket
const outboundQueueSize = 64

type envelope struct {
	parts  [][]byte
	result chan error
}

// pump - the only goroutine touching its socket
type pump struct {
	log      *logger.L
	socket   *zmq.Socket
	poller   *Poller
	out      chan envelope
	deliver  func(parts [][]byte)
	shutdown chan struct{}
	finished chan struct{}
	once     sync.Once
}

func newPump(log *logger.L, socket *zmq.Socket, deliver func([][]byte)) *pump {
	p := &pump{
		log:      log,
		socket:   socket,
		poller:   NewPoller(),
		out:      make(chan envelope, outboundQueueSize),
		deliver:  deliver,
		shutdown: make(chan struct{}),
		finished: make(chan struct{}),
	}
	p.poller.Add(socket, zmq.POLLIN)
	go p.run()
	return p
}

func (p *pump) run() {
	defer close(p.finished)
	defer func() {
		p.poller.Remove(p.socket)
		p.socket.Close()
	}()

	for {
		select {
		case <-p.shutdown:
			return
		default:
		}

	flush:
		for {
			select {
			case e := <-p.out:
				_, err := p.socket.SendMessageDontwait(e.parts)
				e.result <- err
			default:
				break flush
			}
		}

		polled, err := p.poller.Poll(pollInterval)
		if nil != err {
			p.log.Debugf("poll error: %s", err)
			continue
		}
		for range polled {
			parts, err := p.socket.RecvMessageBytes(zmq.DONTWAIT)
			if nil != err {
				continue
			}
			p.deliver(parts)
		}
	}
}

// queue a multipart message and wait for the socket to take it
func (p *pump) send(ctx context.Context, parts [][]byte) error {
	e := envelope{
		parts:  parts,
		result: make(chan error, 1),
	}
	select {
	case p.out <- e:
	case <-p.shutdown:
		return fault.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-e.result:
		return err
	case <-p.finished:
		return fault.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop and wait for the socket to close
func (p *pump) stop() {
	p.once.Do(func() {
		close(p.shutdown)
	})
	<-p.finished
}
