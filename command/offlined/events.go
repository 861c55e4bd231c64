// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/messagebus"
)

const eventQueueSize = 50

// logs connectivity and transaction events
type eventLog struct {
	log       *logger.L
	broadcast *messagebus.BroadcastQueue
	events    <-chan messagebus.Message
}

func newEventLog(broadcast *messagebus.BroadcastQueue) *eventLog {
	return &eventLog{
		log:       logger.New("events"),
		broadcast: broadcast,
		events:    broadcast.Chan(eventQueueSize),
	}
}

// Run - background.Process
func (e *eventLog) Run(args interface{}, shutdown <-chan struct{}) {
	defer e.broadcast.Release(e.events)

	for {
		select {
		case <-shutdown:
			return
		case m := <-e.events:
			e.record(m)
		}
	}
}

func (e *eventLog) record(m messagebus.Message) {
	switch m.Command {
	case messagebus.Online, messagebus.Offline:
		e.log.Infof("settlement: %s", m.Command)
	case messagebus.Completed, messagebus.Received, messagebus.Settled:
		if len(m.Parameters) < 2 {
			e.log.Warnf("%s: missing parameters", m.Command)
			return
		}
		e.log.Infof("%s: tx: %s  amount: %s", m.Command, m.Parameters[0], m.Parameters[1])
	default:
		e.log.Debugf("unhandled: %s", m.Command)
	}
}
