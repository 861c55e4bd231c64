// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	zmq "github.com/pebbe/zmq4"
)

var monitorCount uint64

// NewMonitor - socket receiving the selected events of another socket
//
// each call uses a fresh inproc endpoint
func NewMonitor(socket *zmq.Socket, event zmq.Event) (*zmq.Socket, error) {
	connection := fmt.Sprintf("inproc://zmqutil-monitor-%d", atomic.AddUint64(&monitorCount, 1))

	if err := socket.Monitor(connection, event); nil != err {
		return nil, err
	}

	mon, err := zmq.NewSocket(zmq.PAIR)
	if nil != err {
		return nil, err
	}
	mon.SetLinger(0)
	if err := mon.Connect(connection); nil != err {
		mon.Close()
		return nil, err
	}
	return mon, nil
}

// waitForEvent - block until the monitor reports event or ctx is done
func waitForEvent(ctx context.Context, mon *zmq.Socket, event zmq.Event) error {
	poller := NewPoller()
	poller.Add(mon, zmq.POLLIN)
	for {
		if err := ctx.Err(); nil != err {
			return err
		}
		polled, err := poller.Poll(pollInterval)
		if nil != err {
			return err
		}
		if 0 == len(polled) {
			continue
		}
		e, _, _, err := mon.RecvEvent(0)
		if nil != err {
			return err
		}
		if e&event != 0 {
			return nil
		}
	}
}

// a short poll keeps the pump responsive to writes and shutdown
const pollInterval = 20 * time.Millisecond
