// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/messagebus"
)

// defaults for the background process
const (
	DefaultDrainInterval = time.Minute
	drainTimeout         = 30 * time.Second
)

// Process - background drain and recharge, on an interval, whenever
// connectivity returns and on request
type Process struct {
	log       *logger.L
	queue     *Queue
	recharger *Recharger
	events    <-chan messagebus.Message
	requests  <-chan messagebus.Message
	interval  time.Duration
}

// NewProcess - recharger and requests may be nil
func NewProcess(queue *Queue, recharger *Recharger, events <-chan messagebus.Message, requests <-chan messagebus.Message, interval time.Duration) *Process {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &Process{
		log:       logger.New("settlement-process"),
		queue:     queue,
		recharger: recharger,
		events:    events,
		requests:  requests,
		interval:  interval,
	}
}

// Run - background.Process
func (p *Process) Run(args interface{}, shutdown <-chan struct{}) {
	p.log.Info("starting…")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			p.process()
		case m := <-p.events:
			if messagebus.Online == m.Command {
				p.process()
			}
		case m := <-p.requests:
			p.log.Debugf("%s requested by: %s", m.Command, m.Parameters)
			p.process()
		}
	}
	p.log.Info("stopped")
}

func (p *Process) process() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	n, err := p.queue.Drain(ctx)
	if nil != err {
		p.log.Infof("drain stopped after: %d  error: %s", n, err)
		return
	}
	if n > 0 {
		p.log.Infof("settled: %d redemptions", n)
	}

	if nil == p.recharger {
		return
	}
	if amount, err := p.recharger.Check(ctx, time.Now()); nil != err {
		p.log.Warnf("recharge error: %s", err)
	} else if amount > 0 {
		p.log.Infof("recharged: %d", amount)
	}
}
